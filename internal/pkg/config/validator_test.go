package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCronSchedule(t *testing.T) {
	valid := []string{"30 5 * * *", "*/15 * * * *", "0 6,18 * * 1-5", "0 0 1 * *"}
	for _, s := range valid {
		assert.NoError(t, ValidateCronSchedule(s), s)
	}

	invalid := []string{"", "invalid", "60 * * * *", "0 0 6 * * *", "@hourly"}
	for _, s := range invalid {
		assert.Error(t, ValidateCronSchedule(s), s)
	}

	err := ValidateCronSchedule("")
	assert.EqualError(t, err, "invalid cron schedule: cannot be empty")
}

func TestValidateTimezone(t *testing.T) {
	for _, tz := range []string{"UTC", "Asia/Tokyo", "Asia/Seoul", "Europe/Warsaw", "Europe/Berlin"} {
		assert.NoError(t, ValidateTimezone(tz), tz)
	}
	assert.Error(t, ValidateTimezone(""))
	assert.Error(t, ValidateTimezone("Invalid/Timezone"))
}

func TestValidateDuration(t *testing.T) {
	assert.NoError(t, ValidateDuration(time.Minute, time.Second, time.Hour))
	assert.NoError(t, ValidateDuration(time.Second, time.Second, time.Hour), "min is inclusive")
	assert.NoError(t, ValidateDuration(time.Hour, time.Second, time.Hour), "max is inclusive")
	assert.ErrorContains(t, ValidateDuration(time.Millisecond, time.Second, time.Hour), "below minimum")
	assert.ErrorContains(t, ValidateDuration(2*time.Hour, time.Second, time.Hour), "exceeds maximum")
	assert.ErrorContains(t, ValidateDuration(time.Minute, time.Hour, time.Second), "invalid range")
}

func TestValidateIntRange(t *testing.T) {
	assert.NoError(t, ValidateIntRange(5, 1, 10))
	assert.NoError(t, ValidateIntRange(1, 1, 10))
	assert.NoError(t, ValidateIntRange(10, 1, 10))
	assert.ErrorContains(t, ValidateIntRange(0, 1, 10), "below minimum")
	assert.ErrorContains(t, ValidateIntRange(11, 1, 10), "exceeds maximum")
	assert.ErrorContains(t, ValidateIntRange(5, 10, 1), "invalid range")
}

func TestValidatePositiveDuration(t *testing.T) {
	assert.NoError(t, ValidatePositiveDuration(time.Nanosecond))
	assert.Error(t, ValidatePositiveDuration(0))
	assert.EqualError(t, ValidatePositiveDuration(-time.Second), "duration must be positive, got -1s")
}

func TestValidateListenAddr(t *testing.T) {
	assert.NoError(t, ValidateListenAddr(":9091"))
	assert.NoError(t, ValidateListenAddr("127.0.0.1:8080"))
	assert.Error(t, ValidateListenAddr("9091"))
	assert.Error(t, ValidateListenAddr(""))
}
