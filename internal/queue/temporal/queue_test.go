package temporal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktemporal "go.temporal.io/sdk/temporal"

	"github.com/researchlab/orchestrator/internal/domain"
	"github.com/researchlab/orchestrator/internal/orcherr"
)

func TestRunActivityWrapsNonRetryableErrorForTemporal(t *testing.T) {
	q := &Queue{runner: func(context.Context, domain.DeepResearchJobData) error {
		return orcherr.New(orcherr.Data, errors.New("missing message"))
	}}

	err := q.runActivity(context.Background(), domain.DeepResearchJobData{})
	require.Error(t, err)

	var appErr *sdktemporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.NonRetryable())
}

func TestRunActivityPassesThroughRetryableError(t *testing.T) {
	wantErr := orcherr.New(orcherr.Transient, errors.New("temporary"))
	q := &Queue{runner: func(context.Context, domain.DeepResearchJobData) error {
		return wantErr
	}}

	err := q.runActivity(context.Background(), domain.DeepResearchJobData{})
	assert.Equal(t, wantErr, err)
}

func TestRunActivityPassesThroughNilError(t *testing.T) {
	q := &Queue{runner: func(context.Context, domain.DeepResearchJobData) error {
		return nil
	}}
	assert.NoError(t, q.runActivity(context.Background(), domain.DeepResearchJobData{}))
}
