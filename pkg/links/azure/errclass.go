package azure

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
	"github.com/praetorian-inc/quasar/pkg/types"
)

// authFailureMarkers cover token-layer failures that only reach us as flat
// strings (AADSTS codes from the credential chain) rather than as typed
// responses.
var authFailureMarkers = []string{
	"AADSTS",
	"Authorization_RequestDenied",
	"AuthorizationFailed",
	"Insufficient privileges",
	"does not have authorization",
}

// ClassifyFailure maps a remote call error to a resolution failure reason.
// Structured status codes from ARM and Graph responses take precedence;
// string markers are the fallback for errors with no structured form.
func ClassifyFailure(err error) types.ResolutionFailure {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.FailureTimeout
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return types.FailureAccessDenied
		case http.StatusNotFound:
			return types.FailureNotFound
		}
	}

	var odErr *odataerrors.ODataError
	if errors.As(err, &odErr) {
		switch odErr.ResponseStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return types.FailureAccessDenied
		case http.StatusNotFound:
			return types.FailureNotFound
		}
	}

	msg := err.Error()
	for _, marker := range authFailureMarkers {
		if strings.Contains(msg, marker) {
			return types.FailureAccessDenied
		}
	}
	if strings.Contains(msg, "deadline exceeded") || strings.Contains(strings.ToLower(msg), "timeout") {
		return types.FailureTimeout
	}

	return types.FailureNotFound
}

// failureRank orders reasons by specificity. When several probes fail for
// different reasons, the most specific one is reported.
var failureRank = map[types.ResolutionFailure]int{
	types.FailureAccessDenied: 3,
	types.FailureTimeout:      2,
	types.FailureNotFound:     1,
}

// MoreSpecific returns whichever of the two failure reasons carries more
// information.
func MoreSpecific(a, b types.ResolutionFailure) types.ResolutionFailure {
	if failureRank[b] > failureRank[a] {
		return b
	}
	return a
}
