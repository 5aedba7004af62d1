package engine

import (
	"errors"
	"testing"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

func TestClassifyError_TextHeuristics(t *testing.T) {
	cases := []struct {
		text string
		want models.ErrorKind
	}{
		{"401 Unauthorized", models.ErrorKindNonRetryable},
		{"403 Forbidden: invalid api key", models.ErrorKindNonRetryable},
		{"movie already exists in library", models.ErrorKindNonRetryable},
		{"429 Too Many Requests", models.ErrorKindRateLimited},
		{"503 Service Unavailable", models.ErrorKindRateLimited},
		{"connection reset by peer", models.ErrorKindRetryable},
		{"500 Internal Server Error", models.ErrorKindRetryable},
		{"something bizarre and unseen", models.ErrorKindRetryable},
	}
	for _, c := range cases {
		got := ClassifyError(errors.New(c.text))
		if got != c.want {
			t.Errorf("ClassifyError(%q) = %q, want %q", c.text, got, c.want)
		}
	}
}

// A *ToolError with Kind=timeout must classify as timeout, not be
// re-derived from its own formatted message (which happens to contain
// the substring "timeout" and would otherwise collide with the
// retryable text heuristic).
func TestClassifyError_PreservesToolErrorKind(t *testing.T) {
	te := NewToolError(models.ErrorKindTimeout, "tool deadline exceeded", nil)
	if got := ClassifyError(te); got != models.ErrorKindTimeout {
		t.Fatalf("ClassifyError(timeout ToolError) = %q, want timeout", got)
	}

	ce := NewToolError(models.ErrorKindCircuitOpen, "circuit open", nil)
	if got := ClassifyError(ce); got != models.ErrorKindCircuitOpen {
		t.Fatalf("ClassifyError(circuit_open ToolError) = %q, want circuit_open", got)
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if got := ClassifyError(nil); got != models.ErrorKindRetryable {
		t.Fatalf("ClassifyError(nil) = %q, want retryable", got)
	}
}

func TestIsWriteStyleTool(t *testing.T) {
	writes := []string{
		"radarr_add_movie", "sonarr_update_series", "plex_set_rating",
		"sonarr_monitor_episodes", "radarr_delete_movie", "preferences_update",
		"preferences_create_list", "radarr_remove_movie", "preferences_rate",
	}
	for _, name := range writes {
		if !IsWriteStyleTool(name) {
			t.Errorf("IsWriteStyleTool(%q) = false, want true", name)
		}
	}

	reads := []string{
		"tmdb_search", "tmdb_movie_details", "plex_recently_added",
		"radarr_get_movies", "sonarr_get_queue", "preferences_read",
		"preferences_search",
	}
	for _, name := range reads {
		if IsWriteStyleTool(name) {
			t.Errorf("IsWriteStyleTool(%q) = true, want false", name)
		}
	}
}
