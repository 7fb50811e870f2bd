package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, DefaultAuditEstimate(), cfg.AuditEstimate)
}

func TestFromEnvAuditEstimateOverrides(t *testing.T) {
	t.Setenv("KINERJA_AUDIT_ESTIMATE_DATA", "4.5")
	t.Setenv("KINERJA_AUDIT_ESTIMATE_ASSESSMENTS", "6")
	t.Setenv("KINERJA_AUDIT_ESTIMATE_REPORTS", "1.25")

	cfg := FromEnv()

	assert.Equal(t, AuditEstimate{Data: 4.5, Assessments: 6, Reports: 1.25}, cfg.AuditEstimate)
}

func TestFromEnvAuditEstimateIgnoresMalformedValues(t *testing.T) {
	t.Setenv("KINERJA_AUDIT_ESTIMATE_DATA", "lots")

	cfg := FromEnv()

	assert.Equal(t, DefaultAuditEstimate().Data, cfg.AuditEstimate.Data)
}
