package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 3, cfg.Grading.MinCourseQuizzes)
	assert.Equal(t, 1, cfg.Grading.MinCourseLessons)
	assert.Equal(t, 2, cfg.Grading.MinQuestionChoice)
	assert.Equal(t, float64(50), cfg.Grading.PassThreshold)
	assert.Equal(t, int64(5*1024*1024), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, "/static", cfg.Storage.PublicPrefix)
	assert.Equal(t, "./private", cfg.Storage.PrivateDir)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ALLOWED_ORIGINS", "http://localhost:5173, https://lms.example.com ,")
	v.Set("JWT_EXPIRATION", "not-a-duration")
	v.Set("SIGNED_URL_TTL", "2m")
	v.Set("COURSE_MIN_QUIZZES", 5)

	cfg := fromViper(v)

	assert.Equal(t, []string{"http://localhost:5173", "https://lms.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 2*time.Minute, cfg.Storage.SignedURLTTL)
	assert.Equal(t, 5, cfg.Grading.MinCourseQuizzes)
}

func TestValidate(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)
	require.NoError(t, cfg.Validate())

	cfg.Env = EnvProduction
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "SIGNED_URL_SECRET")

	cfg.JWT.Secret = "a-real-secret"
	cfg.Storage.SignedURLSecret = "another-real-secret"
	require.NoError(t, cfg.Validate())

	cfg.Grading.PassThreshold = 120
	cfg.APIPrefix = "api"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COURSE_PASS_THRESHOLD")
	assert.Contains(t, err.Error(), "API_PREFIX")
}
