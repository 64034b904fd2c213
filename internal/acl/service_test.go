package acl

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sentra-id/sentra/internal/auth"
	"github.com/sentra-id/sentra/internal/shared"
)

func discardTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryStore implements Store for tests and counts node reads so cache
// behavior is observable.
type memoryStore struct {
	nodes  map[string]*Node
	nextID int64
	reads  int
}

func newStoreWith(nodes ...Node) *memoryStore {
	s := &memoryStore{nodes: make(map[string]*Node), nextID: 1}
	for i := range nodes {
		node := nodes[i]
		node.ID = s.nextID
		s.nextID++
		s.nodes[node.Object.String()] = &node
	}
	return s
}

func (s *memoryStore) ReadNode(_ context.Context, object ObjectIdentity) (*Node, error) {
	s.reads++
	node, ok := s.nodes[object.String()]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *node
	clone.Entries = append([]Entry(nil), node.Entries...)
	return &clone, nil
}

func (s *memoryStore) CreateACL(_ context.Context, node Node) error {
	if _, exists := s.nodes[node.Object.String()]; exists {
		return shared.ErrDuplicate
	}
	node.ID = s.nextID
	s.nextID++
	s.nodes[node.Object.String()] = &node
	return nil
}

func (s *memoryStore) UpdateACL(_ context.Context, node Node) error {
	existing, ok := s.nodes[node.Object.String()]
	if !ok {
		return shared.ErrNotFound
	}
	node.ID = existing.ID
	s.nodes[node.Object.String()] = &node
	return nil
}

func (s *memoryStore) InsertEntry(_ context.Context, object ObjectIdentity, entry Entry) error {
	node, ok := s.nodes[object.String()]
	if !ok {
		return shared.ErrNotFound
	}
	for i := range node.Entries {
		if node.Entries[i].Position >= entry.Position {
			node.Entries[i].Position++
		}
	}
	node.Entries = append(node.Entries, entry)
	sortEntries(node.Entries)
	return nil
}

func (s *memoryStore) UpdateEntry(_ context.Context, object ObjectIdentity, entry Entry) error {
	node, ok := s.nodes[object.String()]
	if !ok {
		return shared.ErrNotFound
	}
	for i := range node.Entries {
		if node.Entries[i].Position == entry.Position {
			node.Entries[i] = entry
			return nil
		}
	}
	return shared.ErrNotFound
}

func (s *memoryStore) DeleteEntry(_ context.Context, object ObjectIdentity, position int) error {
	node, ok := s.nodes[object.String()]
	if !ok {
		return shared.ErrNotFound
	}
	for i := range node.Entries {
		if node.Entries[i].Position == position {
			node.Entries = append(node.Entries[:i], node.Entries[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func testCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func reportNode() Node {
	return Node{
		Object: ObjectIdentity{Type: "report", ID: "42"},
		Entries: []Entry{
			{Position: 0, Permission: PermissionRead, SID: RoleSID(auth.RoleUser), Granting: true},
			{Position: 1, Permission: PermissionWrite, SID: PrincipalSID("jdoe"), Granting: true},
		},
	}
}

func TestCheckGrantAndDeny(t *testing.T) {
	store := newStoreWith(reportNode())
	svc := NewService(discardTestLogger(), store, nil)
	ctx := context.Background()
	object := ObjectIdentity{Type: "report", ID: "42"}

	granted, err := svc.Check(ctx, object, []Permission{PermissionRead}, "jdoe", []auth.Role{auth.RoleUser}, false)
	require.NoError(t, err)
	require.True(t, granted)

	// No entry reaches DELETE: an exhausted chain is a plain denial.
	granted, err = svc.Check(ctx, object, []Permission{PermissionDelete}, "jdoe", []auth.Role{auth.RoleUser}, false)
	require.NoError(t, err)
	require.False(t, granted)
}

func TestCheckMissingACLDenies(t *testing.T) {
	svc := NewService(discardTestLogger(), newStoreWith(), nil)

	granted, err := svc.Check(context.Background(), ObjectIdentity{Type: "report", ID: "404"},
		[]Permission{PermissionRead}, "jdoe", []auth.Role{auth.RoleUser}, false)
	require.NoError(t, err)
	require.False(t, granted)
}

func TestCheckRequiresPermissions(t *testing.T) {
	svc := NewService(discardTestLogger(), newStoreWith(reportNode()), nil)

	_, err := svc.Check(context.Background(), ObjectIdentity{Type: "report", ID: "42"}, nil, "jdoe", nil, false)
	require.Error(t, err)
}

func TestReadACLAssemblesParentChain(t *testing.T) {
	folder := ObjectIdentity{Type: "folder", ID: "reports"}
	store := newStoreWith(
		Node{
			Object:  folder,
			Entries: []Entry{{Position: 0, Permission: PermissionRead, SID: RoleSID(auth.RoleUser), Granting: true}},
		},
		Node{
			Object:        ObjectIdentity{Type: "report", ID: "42"},
			Parent:        &folder,
			InheritParent: true,
			Entries:       []Entry{{Position: 0, Permission: PermissionWrite, SID: PrincipalSID("jdoe"), Granting: true}},
		},
	)
	svc := NewService(discardTestLogger(), store, nil)

	list, err := svc.ReadACL(context.Background(), ObjectIdentity{Type: "report", ID: "42"})
	require.NoError(t, err)
	require.NotNil(t, list.Parent)
	require.Equal(t, folder, list.Parent.Object)

	granted, err := svc.Check(context.Background(), ObjectIdentity{Type: "report", ID: "42"},
		[]Permission{PermissionRead}, "jdoe", []auth.Role{auth.RoleUser}, false)
	require.NoError(t, err)
	require.True(t, granted)
}

func TestReadACLToleratesDanglingParent(t *testing.T) {
	missing := ObjectIdentity{Type: "folder", ID: "deleted"}
	store := newStoreWith(Node{
		Object:        ObjectIdentity{Type: "report", ID: "42"},
		Parent:        &missing,
		InheritParent: true,
		Entries:       []Entry{{Position: 0, Permission: PermissionRead, SID: RoleSID(auth.RoleUser), Granting: true}},
	})
	svc := NewService(discardTestLogger(), store, nil)

	list, err := svc.ReadACL(context.Background(), ObjectIdentity{Type: "report", ID: "42"})
	require.NoError(t, err)
	require.Nil(t, list.Parent)
}

func TestReadACLCyclicParentBounded(t *testing.T) {
	a := ObjectIdentity{Type: "folder", ID: "a"}
	b := ObjectIdentity{Type: "folder", ID: "b"}
	store := newStoreWith(
		Node{Object: a, Parent: &b, InheritParent: true},
		Node{Object: b, Parent: &a, InheritParent: true},
	)
	svc := NewService(discardTestLogger(), store, nil)

	_, err := svc.ReadACL(context.Background(), a)
	require.Error(t, err)
}

func TestReadACLCachesNodes(t *testing.T) {
	store := newStoreWith(reportNode())
	svc := NewService(discardTestLogger(), store, testCache(t))
	ctx := context.Background()
	object := ObjectIdentity{Type: "report", ID: "42"}

	_, err := svc.ReadACL(ctx, object)
	require.NoError(t, err)
	require.Equal(t, 1, store.reads)

	_, err = svc.ReadACL(ctx, object)
	require.NoError(t, err)
	require.Equal(t, 1, store.reads)
}

func TestMutationsInvalidateCache(t *testing.T) {
	store := newStoreWith(reportNode())
	svc := NewService(discardTestLogger(), store, testCache(t))
	ctx := context.Background()
	object := ObjectIdentity{Type: "report", ID: "42"}

	_, err := svc.ReadACL(ctx, object)
	require.NoError(t, err)

	entry := Entry{Position: 0, Permission: PermissionRead, SID: PrincipalSID("intruder"), Granting: false}
	require.NoError(t, svc.InsertEntry(ctx, object, entry))

	list, err := svc.ReadACL(ctx, object)
	require.NoError(t, err)
	require.Equal(t, 2, store.reads)
	require.Len(t, list.Entries, 3)
	require.Equal(t, PrincipalSID("intruder"), list.Entries[0].SID)

	// The prior occupant of position 0 was pushed down, not overwritten.
	require.Equal(t, 1, list.Entries[1].Position)
	require.Equal(t, RoleSID(auth.RoleUser), list.Entries[1].SID)
}

func TestCreateACLValidation(t *testing.T) {
	svc := NewService(discardTestLogger(), newStoreWith(), nil)
	ctx := context.Background()

	err := svc.CreateACL(ctx, Node{})
	require.Error(t, err)

	err = svc.CreateACL(ctx, Node{
		Object: ObjectIdentity{Type: "report", ID: "1"},
		Entries: []Entry{
			{Position: 0, Permission: PermissionRead, SID: "a", Granting: true},
			{Position: 0, Permission: PermissionWrite, SID: "b", Granting: true},
		},
	})
	require.ErrorContains(t, err, "duplicate position")

	err = svc.CreateACL(ctx, Node{
		Object:  ObjectIdentity{Type: "report", ID: "1"},
		Entries: []Entry{{Position: 0, Permission: Permission(9), SID: "a", Granting: true}},
	})
	require.ErrorContains(t, err, "invalid permission")

	err = svc.CreateACL(ctx, Node{
		Object:  ObjectIdentity{Type: "report", ID: "1"},
		Entries: []Entry{{Position: 0, Permission: PermissionRead, Granting: true}},
	})
	require.ErrorContains(t, err, "sid is required")
}

func TestDeleteEntryLeavesGap(t *testing.T) {
	store := newStoreWith(reportNode())
	svc := NewService(discardTestLogger(), store, nil)
	ctx := context.Background()
	object := ObjectIdentity{Type: "report", ID: "42"}

	require.NoError(t, svc.DeleteEntry(ctx, object, 0))

	list, err := svc.ReadACL(ctx, object)
	require.NoError(t, err)
	require.Len(t, list.Entries, 1)
	// Survivors keep their positions.
	require.Equal(t, 1, list.Entries[0].Position)
}
