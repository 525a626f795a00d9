package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
	"github.com/praetorian-inc/quasar/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestClassifyFailure_Timeout(t *testing.T) {
	assert.Equal(t, types.FailureTimeout, ClassifyFailure(context.DeadlineExceeded))
	assert.Equal(t, types.FailureTimeout, ClassifyFailure(fmt.Errorf("listing assignments: %w", context.DeadlineExceeded)))
	assert.Equal(t, types.FailureTimeout, ClassifyFailure(errors.New("Get \"https://graph.microsoft.com\": dial tcp: i/o timeout")))
}

func TestClassifyFailure_ARMResponseError(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   types.ResolutionFailure
	}{
		{http.StatusUnauthorized, types.FailureAccessDenied},
		{http.StatusForbidden, types.FailureAccessDenied},
		{http.StatusNotFound, types.FailureNotFound},
	}

	for _, tc := range tests {
		err := &azcore.ResponseError{StatusCode: tc.statusCode}
		assert.Equal(t, tc.expected, ClassifyFailure(err), "status %d", tc.statusCode)
		assert.Equal(t, tc.expected, ClassifyFailure(fmt.Errorf("wrapped: %w", err)), "wrapped status %d", tc.statusCode)
	}
}

func TestClassifyFailure_GraphODataError(t *testing.T) {
	forbidden := &odataerrors.ODataError{}
	forbidden.ResponseStatusCode = http.StatusForbidden
	assert.Equal(t, types.FailureAccessDenied, ClassifyFailure(forbidden))

	notFound := &odataerrors.ODataError{}
	notFound.ResponseStatusCode = http.StatusNotFound
	assert.Equal(t, types.FailureNotFound, ClassifyFailure(notFound))
}

func TestClassifyFailure_StringMarkers(t *testing.T) {
	assert.Equal(t, types.FailureAccessDenied,
		ClassifyFailure(errors.New("AADSTS700016: Application not found in the directory")))
	assert.Equal(t, types.FailureAccessDenied,
		ClassifyFailure(errors.New("Authorization_RequestDenied: Insufficient privileges to complete the operation")))
	assert.Equal(t, types.FailureAccessDenied,
		ClassifyFailure(errors.New("AuthorizationFailed: the client does not have authorization to perform action")))
}

func TestClassifyFailure_DefaultsToNotFound(t *testing.T) {
	assert.Equal(t, types.FailureNotFound, ClassifyFailure(errors.New("something unexpected")))
}

func TestClassifyFailure_NilError(t *testing.T) {
	assert.Equal(t, types.ResolutionFailure(""), ClassifyFailure(nil))
}

func TestMoreSpecific(t *testing.T) {
	assert.Equal(t, types.FailureAccessDenied, MoreSpecific(types.FailureNotFound, types.FailureAccessDenied))
	assert.Equal(t, types.FailureAccessDenied, MoreSpecific(types.FailureAccessDenied, types.FailureTimeout))
	assert.Equal(t, types.FailureTimeout, MoreSpecific(types.FailureNotFound, types.FailureTimeout))
	assert.Equal(t, types.FailureTimeout, MoreSpecific(types.FailureTimeout, types.FailureNotFound))
	assert.Equal(t, types.FailureNotFound, MoreSpecific("", types.FailureNotFound))
}
