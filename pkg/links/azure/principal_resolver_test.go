package azure

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/praetorian-inc/quasar/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeObjectID_Hyphenated(t *testing.T) {
	id, err := NormalizeObjectID("87d349ed-44d7-43e1-9a83-5f2406dee5bd")
	require.NoError(t, err)
	assert.Equal(t, "87d349ed-44d7-43e1-9a83-5f2406dee5bd", id)
}

func TestNormalizeObjectID_ContiguousHex(t *testing.T) {
	id, err := NormalizeObjectID("87d349ed44d743e19a835f2406dee5bd")
	require.NoError(t, err)
	assert.Equal(t, "87d349ed-44d7-43e1-9a83-5f2406dee5bd", id)
}

func TestNormalizeObjectID_TrimsWhitespace(t *testing.T) {
	id, err := NormalizeObjectID("  87d349ed-44d7-43e1-9a83-5f2406dee5bd\n")
	require.NoError(t, err)
	assert.Equal(t, "87d349ed-44d7-43e1-9a83-5f2406dee5bd", id)
}

func TestNormalizeObjectID_UppercaseCanonicalized(t *testing.T) {
	id, err := NormalizeObjectID("87D349ED-44D7-43E1-9A83-5F2406DEE5BD")
	require.NoError(t, err)
	assert.Equal(t, "87d349ed-44d7-43e1-9a83-5f2406dee5bd", id)
}

func TestNormalizeObjectID_Rejected(t *testing.T) {
	rejected := []string{
		"",
		"not-a-uuid",
		"87d349ed",
		"{87d349ed-44d7-43e1-9a83-5f2406dee5bd}",
		"urn:uuid:87d349ed-44d7-43e1-9a83-5f2406dee5bd",
		"87d349ed-44d7-43e1-9a83-5f2406dee5bdff",
		"zzd349ed-44d7-43e1-9a83-5f2406dee5bd",
	}

	for _, raw := range rejected {
		_, err := NormalizeObjectID(raw)
		assert.Error(t, err, "input %q", raw)
	}
}

const testObjectID = "87d349ed-44d7-43e1-9a83-5f2406dee5bd"

func failingProbe(kind types.PrincipalType, err error, calls *[]types.PrincipalType) identityProbe {
	return identityProbe{Kind: kind, Fetch: func(ctx context.Context) (string, error) {
		*calls = append(*calls, kind)
		return "", err
	}}
}

func TestResolveIdentity_FirstSuccessWins(t *testing.T) {
	var calls []types.PrincipalType
	probes := []identityProbe{
		failingProbe(types.PrincipalUser, &azcore.ResponseError{StatusCode: http.StatusNotFound}, &calls),
		{Kind: types.PrincipalServicePrincipal, Fetch: func(ctx context.Context) (string, error) {
			calls = append(calls, types.PrincipalServicePrincipal)
			return "automation-sp", nil
		}},
		failingProbe(types.PrincipalGroup, errors.New("must not run"), &calls),
	}

	identity := ResolveIdentity(context.Background(), testObjectID, probes, time.Second, nil)

	assert.Equal(t, types.PrincipalServicePrincipal, identity.Type)
	assert.Equal(t, "automation-sp", identity.DisplayName)
	assert.Empty(t, identity.ResolutionError)
	assert.Equal(t, []types.PrincipalType{types.PrincipalUser, types.PrincipalServicePrincipal}, calls,
		"probing stops at the first success")
}

func TestResolveIdentity_AllFailuresRunEveryProbe(t *testing.T) {
	var calls []types.PrincipalType
	probes := []identityProbe{
		failingProbe(types.PrincipalUser, context.DeadlineExceeded, &calls),
		failingProbe(types.PrincipalServicePrincipal, &azcore.ResponseError{StatusCode: http.StatusForbidden}, &calls),
		failingProbe(types.PrincipalGroup, &azcore.ResponseError{StatusCode: http.StatusNotFound}, &calls),
	}

	identity := ResolveIdentity(context.Background(), testObjectID, probes, time.Second, nil)

	require.Equal(t, types.PrincipalUnknown, identity.Type)
	assert.Equal(t, types.FailureAccessDenied, identity.ResolutionError,
		"access denied outranks timeout and not found")
	assert.Equal(t, []types.PrincipalType{types.PrincipalUser, types.PrincipalServicePrincipal, types.PrincipalGroup}, calls,
		"a failed probe never aborts the sequence")
}

func TestResolveIdentity_AllProbesTimeOut(t *testing.T) {
	blockUntilDeadline := func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	probes := []identityProbe{
		{Kind: types.PrincipalUser, Fetch: blockUntilDeadline},
		{Kind: types.PrincipalServicePrincipal, Fetch: blockUntilDeadline},
		{Kind: types.PrincipalGroup, Fetch: blockUntilDeadline},
	}

	identity := ResolveIdentity(context.Background(), testObjectID, probes, 10*time.Millisecond, nil)

	assert.Equal(t, types.PrincipalUnknown, identity.Type)
	assert.Equal(t, types.FailureTimeout, identity.ResolutionError)
	assert.Equal(t, testObjectID, identity.ObjectID)
}

func TestResolveIdentity_EachProbeGetsOwnDeadline(t *testing.T) {
	var deadlines []time.Time
	record := func(ctx context.Context) (string, error) {
		d, ok := ctx.Deadline()
		if !ok {
			t.Fatal("probe context has no deadline")
		}
		deadlines = append(deadlines, d)
		time.Sleep(20 * time.Millisecond)
		return "", &azcore.ResponseError{StatusCode: http.StatusNotFound}
	}
	probes := []identityProbe{
		{Kind: types.PrincipalUser, Fetch: record},
		{Kind: types.PrincipalServicePrincipal, Fetch: record},
	}

	identity := ResolveIdentity(context.Background(), testObjectID, probes, time.Hour, nil)

	assert.Equal(t, types.FailureNotFound, identity.ResolutionError)
	require.Len(t, deadlines, 2)
	assert.True(t, deadlines[1].After(deadlines[0]),
		"later probes are not charged for time spent in earlier ones")
}

func TestResolveIdentity_DiagReceivesEachFailure(t *testing.T) {
	var reported []types.PrincipalType
	var calls []types.PrincipalType
	probes := []identityProbe{
		failingProbe(types.PrincipalUser, errors.New("boom"), &calls),
		failingProbe(types.PrincipalServicePrincipal, errors.New("boom"), &calls),
	}

	ResolveIdentity(context.Background(), testObjectID, probes, time.Second, func(kind types.PrincipalType, err error) {
		reported = append(reported, kind)
	})

	assert.Equal(t, []types.PrincipalType{types.PrincipalUser, types.PrincipalServicePrincipal}, reported)
}
