package metadata

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestPlaceholderLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	eventDate := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	id, err := store.CreatePlaceholderEvent(ctx, Draft{
		Slug:      "finals-day-one",
		Title:     "Finals day one",
		Body:      "First clip of the finals.",
		EventDate: eventDate,
	})
	require.NoError(t, err)
	require.Positive(t, id)

	ev, err := store.GetEvent(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "finals-day-one", ev.Slug)
	require.Empty(t, ev.VideoURL, "placeholder must not be published")
	require.Empty(t, ev.ThumbnailURL)
	require.True(t, ev.CreatedAt.Equal(eventDate))

	err = store.UpdateEventMedia(ctx, id, MediaUpdate{
		VideoURL:        "https://cdn.test/clips/1/a_720p.mp4",
		ThumbnailURL:    "https://cdn.test/clips/1/a_thumb_720p.jpg",
		OriginalClipURL: "https://clips.twitch.tv/a",
	})
	require.NoError(t, err)

	ev, err = store.GetEvent(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.test/clips/1/a_720p.mp4", ev.VideoURL)
	require.Equal(t, "https://cdn.test/clips/1/a_thumb_720p.jpg", ev.ThumbnailURL)
	require.Equal(t, "https://clips.twitch.tv/a", ev.OriginalClipURL)
}

func TestUpdateEventMediaMissingEvent(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateEventMedia(context.Background(), 4242, MediaUpdate{VideoURL: "x"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVariantsSortedBestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreatePlaceholderEvent(ctx, Draft{Title: "t", Body: "b"})
	require.NoError(t, err)

	for _, label := range []string{"360p", "best", "1080p", "720p"} {
		_, err := store.AddVideoVariant(ctx, VideoVariant{
			EventID:      id,
			QualityLabel: label,
			MIME:         "video/mp4",
			StorageKey:   "clips/1/clip_" + label + ".mp4",
			PublicURL:    "https://cdn.test/clips/1/clip_" + label + ".mp4",
		})
		require.NoError(t, err)
	}

	variants, err := store.ListVariants(ctx, id)
	require.NoError(t, err)

	labels := make([]string, 0, len(variants))
	for _, v := range variants {
		labels = append(labels, v.QualityLabel)
	}
	require.Equal(t, []string{"1080p", "720p", "360p", "best"}, labels)
}

func TestDeleteEventCascadesVariants(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreatePlaceholderEvent(ctx, Draft{Title: "t", Body: "b"})
	require.NoError(t, err)

	_, err = store.AddVideoVariant(ctx, VideoVariant{
		EventID:      id,
		QualityLabel: "720p",
		MIME:         "video/mp4",
		StorageKey:   "clips/1/clip_720p.mp4",
		PublicURL:    "https://cdn.test/clips/1/clip_720p.mp4",
	})
	require.NoError(t, err)

	keys, err := store.ListVariantKeys(ctx, id)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.NoError(t, store.DeleteEvent(ctx, id))
	require.ErrorIs(t, store.DeleteEvent(ctx, id), ErrNotFound)

	keys, err = store.ListVariantKeys(ctx, id)
	require.NoError(t, err)
	require.Empty(t, keys)

	_, err = store.GetEvent(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSlugUniqueness(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.CreatePlaceholderEvent(ctx, Draft{Slug: "dup", Title: "a", Body: "a"})
	require.NoError(t, err)

	_, err = store.CreatePlaceholderEvent(ctx, Draft{Slug: "dup", Title: "b", Body: "b"})
	require.Error(t, err)

	// Empty slugs are stored as NULL and never collide.
	_, err = store.CreatePlaceholderEvent(ctx, Draft{Title: "c", Body: "c"})
	require.NoError(t, err)
	_, err = store.CreatePlaceholderEvent(ctx, Draft{Title: "d", Body: "d"})
	require.NoError(t, err)
}

func TestResetDropsAllRows(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.CreatePlaceholderEvent(ctx, Draft{Title: "t", Body: "b"})
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx))

	events, err := store.ListEvents(ctx)
	require.NoError(t, err)
	require.Empty(t, events)

	// Schema must be usable again after the reset.
	_, err = store.CreatePlaceholderEvent(ctx, Draft{Title: "t2", Body: "b2"})
	require.NoError(t, err)
}
