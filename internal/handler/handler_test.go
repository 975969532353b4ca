package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milestonez/internal/codec"
	"milestonez/internal/llm"
	"milestonez/internal/repository"
	"milestonez/internal/service"
	"milestonez/pkg/circuitbreaker"
)

func TestStatusFor(t *testing.T) {
	stage := func(s service.Stage, err error) error { return &service.StageError{Stage: s, Err: err} }

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", stage(service.StageValidate, fmt.Errorf("%w: bad", service.ErrValidation)), http.StatusBadRequest},
		{"duplicate", stage(service.StageValidate, service.ErrDuplicateRequest), http.StatusConflict},
		{"not found", stage(service.StageLoad, repository.ErrHistoryNotFound), http.StatusNotFound},
		{"patch target", stage(service.StageSerialize, codec.ErrPatchTargetNotFound), http.StatusNotFound},
		{"ambiguous", stage(service.StageSerialize, codec.ErrAmbiguousPatchTarget), http.StatusConflict},
		{"reserved", stage(service.StageSerialize, codec.ErrReservedContent), http.StatusBadRequest},
		{"provider", stage(service.StageGenerate, &llm.ProviderError{Provider: "azure", Op: "complete", Err: errors.New("x")}), http.StatusBadGateway},
		{"circuit open", stage(service.StageSummarize, &llm.ProviderError{Provider: "azure", Op: "complete", Err: circuitbreaker.ErrCircuitBreakerOpen}), http.StatusServiceUnavailable},
		{"persist", stage(service.StagePersist, errors.New("disk full")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestFlexibleID(t *testing.T) {
	var req GenerateMilestonesRequest
	require.NoError(t, json.Unmarshal([]byte(`{"user_id":42,"project_id":"p"}`), &req))
	assert.Equal(t, FlexibleID("42"), req.UserID)
	assert.Equal(t, FlexibleID("p"), req.ProjectID)

	require.NoError(t, json.Unmarshal([]byte(`{"user_id":"alice"}`), &req))
	assert.Equal(t, FlexibleID("alice"), req.UserID)

	assert.Error(t, json.Unmarshal([]byte(`{"user_id":1.5}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"user_id":true}`), &req))
}

func TestUpdateRequest_NilListsBecomeEmpty(t *testing.T) {
	m := UpdateMilestoneRequest{Index: 1, Title: "t"}.milestone()
	assert.NotNil(t, m.Roles)
	assert.NotNil(t, m.Deliverables)
}
