package localstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vendor-portal/internal/model"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "test:local", ttl), mr
}

func sampleRecord() Record {
	return Record{
		Role:   model.RoleVendor,
		Vendor: &model.VendorProfile{ID: "v1", OwnerID: "u1", IsActive: true},
		Staff:  &model.StaffProfile{ID: "s1", UserID: "u1", Role: model.StaffRoleOwner},
	}
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemory(time.Hour) },
		"redis": func(t *testing.T) Store {
			s, _ := newRedisStore(t, time.Hour)
			return s
		},
	}
	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk(t)

			_, ok, err := s.Load(ctx, "u1")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Save(ctx, "u1", sampleRecord()))
			rec, ok, err := s.Load(ctx, "u1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, model.RoleVendor, rec.Role)
			require.NotNil(t, rec.Vendor)
			assert.True(t, rec.Vendor.IsActive)
			assert.False(t, rec.SavedAt.IsZero())

			require.NoError(t, s.Purge(ctx, "u1"))
			_, ok, err = s.Load(ctx, "u1")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Purge(ctx, "never-saved"))
		})
	}
}

func TestRedisKeyAndTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t, time.Minute)
	require.NoError(t, s.Save(ctx, "u1", sampleRecord()))

	assert.True(t, mr.Exists("test:local:u1"))
	assert.Equal(t, time.Minute, mr.TTL("test:local:u1"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCorruptRecordIsDropped(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t, time.Minute)
	require.NoError(t, mr.Set("test:local:u1", "{not json"))

	_, ok, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("test:local:u1"))
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	require.NoError(t, m.Save(ctx, "u1", sampleRecord()))
	now = base.Add(30 * time.Second)
	_, ok, _ := m.Load(ctx, "u1")
	assert.True(t, ok)
	now = base.Add(2 * time.Minute)
	_, ok, _ = m.Load(ctx, "u1")
	assert.False(t, ok)
}
