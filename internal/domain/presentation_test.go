package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/domain"
)

func TestStatusMapper_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []domain.Status{
		domain.StatusPending,
		domain.StatusAccepted,
		domain.StatusRejected,
		domain.StatusCompleted,
	} {
		require.Equal(t, s, domain.ToPersisted(domain.ToPresentation(s)), "status %s", s)
	}
}

func TestStatusMapper_Pairs(t *testing.T) {
	t.Parallel()

	require.Equal(t, domain.PresentationConfirmed, domain.ToPresentation(domain.StatusAccepted))
	require.Equal(t, domain.PresentationCancelled, domain.ToPresentation(domain.StatusRejected))
	require.Equal(t, domain.PresentationCompleted, domain.ToPresentation(domain.StatusCompleted))
	require.Equal(t, domain.PresentationPending, domain.ToPresentation(""))

	// ready is lossy: it collapses back to accepted
	require.Equal(t, domain.StatusAccepted, domain.ToPersisted(domain.PresentationReady))
	require.Equal(t, domain.StatusPending, domain.ToPersisted("unknown"))
}
