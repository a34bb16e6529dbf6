package store_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/NicolasHaas/roomchat/pkg/crypto"
	"github.com/NicolasHaas/roomchat/pkg/model"
	"github.com/NicolasHaas/roomchat/pkg/store"
)

// fastHash keeps Argon2id cheap enough for concurrent tests.
var fastHash = store.WithHashParams(crypto.Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32})

func NewTestSqlConn(t *testing.T) (*store.Store, error) {
	t.Helper()

	// Creates a temporary on-disk datastore
	// with a unique name per-test
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	st, err := store.New(dbPath, fastHash)
	if err != nil {
		return nil, fmt.Errorf("store_test: failed to open db: %w", err)
	}

	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			fmt.Printf("Error closing database: %v\n", err)
		}
	})

	return st, nil
}

// withStores runs fn against the SQLite store and the memory store.
func withStores(t *testing.T, fn func(t *testing.T, st store.Gateway)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) {
		st, err := NewTestSqlConn(t)
		if err != nil {
			t.Fatalf("failed to open test connection: %v", err)
		}
		fn(t, st)
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, store.NewMemory(fastHash))
	})
}

func TestRegisterUser(t *testing.T) {
	t.Parallel()

	type tcase struct {
		username string
		password string
		wantErr  error
	}

	tcases := map[string]tcase{
		"minimum_required_fields": {
			username: "johndoe",
			password: "pw",
		},
		"injection_username": { // SQL injection contains invalid chars (quotes, spaces, equals)
			username: "' OR '1'='1",
			password: "pw",
			wantErr:  model.ErrUsernameInvalidChars,
		},
		"empty_username": {
			username: "",
			password: "pw",
			wantErr:  model.ErrUsernameEmpty,
		},
		"full_username": { // 32 characters does not fit the wire field
			username: "24433252080542468109190329288548",
			password: "pw",
			wantErr:  model.ErrUsernameTooLong,
		},
		"reserved_username": {
			username: "SYSTEM",
			password: "pw",
			wantErr:  model.ErrUsernameReserved,
		},
		"empty_password": {
			username: "janedoe",
			password: "",
			wantErr:  model.ErrPasswordEmpty,
		},
	}

	fn := func(tc tcase) func(*testing.T) {
		return func(t *testing.T) {
			withStores(t, func(t *testing.T, st store.Gateway) {
				id, err := st.RegisterUser(tc.username, tc.password)
				if tc.wantErr != nil {
					if !errors.Is(err, tc.wantErr) {
						t.Fatalf("expected %v, got %v", tc.wantErr, err)
					}
					return
				}
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if id == 0 {
					t.Fatalf("expected non-zero ID")
				}

				got, err := st.GetUserByUsername(tc.username)
				if err != nil {
					t.Fatalf("GetUserByUsername: unexpected error: %v", err)
				}
				want := &model.User{ID: id, Username: tc.username}
				if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(model.User{}, "PasswordHash", "CreatedAt")); diff != "" {
					t.Errorf("store.RegisterUser mismatch (-want +got):\n%s", diff)
				}
				if got.PasswordHash == tc.password {
					t.Errorf("password stored in plaintext")
				}
			})
		}
	}

	for name, tc := range tcases {
		t.Run(name, fn(tc))
	}
}

func TestRegisterDuplicate(t *testing.T) {
	withStores(t, func(t *testing.T, st store.Gateway) {
		if _, err := st.RegisterUser("alice", "pw"); err != nil {
			t.Fatalf("first RegisterUser: unexpected error: %v", err)
		}
		_, err := st.RegisterUser("alice", "other")
		if !errors.Is(err, model.ErrUserExists) {
			t.Fatalf("second RegisterUser: want ErrUserExists, got %v", err)
		}
	})
}

func TestRegisterConcurrent(t *testing.T) {
	withStores(t, func(t *testing.T, st store.Gateway) {
		const workers = 8

		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = st.RegisterUser("bob", "pw")
			}()
		}
		wg.Wait()

		var ok, exists int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, model.ErrUserExists):
				exists++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		if ok != 1 || exists != workers-1 {
			t.Fatalf("want 1 success and %d duplicates, got %d and %d", workers-1, ok, exists)
		}
	})
}

func TestAuthenticate(t *testing.T) {
	withStores(t, func(t *testing.T, st store.Gateway) {
		if ok, err := st.Authenticate("alice", "pw"); err != nil || ok {
			t.Fatalf("Authenticate(unknown) = %t, %v; want false, nil", ok, err)
		}
		if _, err := st.RegisterUser("alice", "pw"); err != nil {
			t.Fatalf("RegisterUser: unexpected error: %v", err)
		}
		if ok, err := st.Authenticate("alice", "pw"); err != nil || !ok {
			t.Fatalf("Authenticate(correct) = %t, %v; want true, nil", ok, err)
		}
		if ok, err := st.Authenticate("alice", "wrong"); err != nil || ok {
			t.Fatalf("Authenticate(wrong) = %t, %v; want false, nil", ok, err)
		}
	})
}

func TestGetUserID(t *testing.T) {
	withStores(t, func(t *testing.T, st store.Gateway) {
		if _, err := st.GetUserID("ghost"); !errors.Is(err, model.ErrUserNotFound) {
			t.Fatalf("GetUserID(unknown): want ErrUserNotFound, got %v", err)
		}
		id, err := st.RegisterUser("alice", "pw")
		if err != nil {
			t.Fatalf("RegisterUser: unexpected error: %v", err)
		}
		got, err := st.GetUserID("alice")
		if err != nil {
			t.Fatalf("GetUserID: unexpected error: %v", err)
		}
		if got != id {
			t.Errorf("GetUserID: want %d got %d", id, got)
		}
	})
}

func TestListUsers(t *testing.T) {
	withStores(t, func(t *testing.T, st store.Gateway) {
		for _, name := range []string{"alice", "bob", "carol"} {
			if _, err := st.RegisterUser(name, "pw"); err != nil {
				t.Fatalf("RegisterUser(%s): %v", name, err)
			}
		}
		users, err := st.ListUsers()
		if err != nil {
			t.Fatalf("ListUsers: unexpected error: %v", err)
		}
		want := []model.User{
			{ID: 1, Username: "alice"},
			{ID: 2, Username: "bob"},
			{ID: 3, Username: "carol"},
		}
		if diff := cmp.Diff(want, users, cmpopts.IgnoreFields(model.User{}, "PasswordHash", "CreatedAt")); diff != "" {
			t.Errorf("store.ListUsers mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestCreateRoom(t *testing.T) {
	withStores(t, func(t *testing.T, st store.Gateway) {
		owner, err := st.RegisterUser("alice", "pw")
		if err != nil {
			t.Fatalf("RegisterUser: unexpected error: %v", err)
		}

		id, err := st.CreateRoom("lobby", owner)
		if err != nil {
			t.Fatalf("CreateRoom: unexpected error: %v", err)
		}
		if len(id) != model.RoomIDLength {
			t.Fatalf("CreateRoom: want %d-char id, got %q", model.RoomIDLength, id)
		}

		exists, err := st.RoomExists(id)
		if err != nil || !exists {
			t.Fatalf("RoomExists = %t, %v; want true, nil", exists, err)
		}
		name, err := st.GetRoomName(id)
		if err != nil || name != "lobby" {
			t.Fatalf("GetRoomName = %q, %v; want lobby, nil", name, err)
		}

		room, err := st.GetRoom(id)
		if err != nil {
			t.Fatalf("GetRoom: unexpected error: %v", err)
		}
		want := &model.Room{ID: id, Name: "lobby", OwnerID: owner}
		if diff := cmp.Diff(want, room, cmpopts.IgnoreFields(model.Room{}, "CreatedAt")); diff != "" {
			t.Errorf("store.GetRoom mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestCreateRoomInvalid(t *testing.T) {
	withStores(t, func(t *testing.T, st store.Gateway) {
		if _, err := st.CreateRoom("   ", 0); !errors.Is(err, model.ErrRoomNameEmpty) {
			t.Errorf("CreateRoom(blank): want ErrRoomNameEmpty, got %v", err)
		}
	})
}

func TestMissingRoom(t *testing.T) {
	const missing = "00000000-0000-4000-8000-000000000000"

	withStores(t, func(t *testing.T, st store.Gateway) {
		exists, err := st.RoomExists(missing)
		if err != nil || exists {
			t.Fatalf("RoomExists = %t, %v; want false, nil", exists, err)
		}
		if _, err := st.GetRoomName(missing); !errors.Is(err, model.ErrRoomNotFound) {
			t.Fatalf("GetRoomName: want ErrRoomNotFound, got %v", err)
		}
		room, err := st.GetRoom(missing)
		if err != nil || room != nil {
			t.Fatalf("GetRoom = %v, %v; want nil, nil", room, err)
		}
		room, err = st.GetRoomByName("nowhere")
		if err != nil || room != nil {
			t.Fatalf("GetRoomByName = %v, %v; want nil, nil", room, err)
		}
	})
}

func TestInsertAndListRooms(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	withStores(t, func(t *testing.T, st store.Gateway) {
		rooms, err := st.ListRooms()
		if err != nil {
			t.Fatalf("ListRooms(empty): unexpected error: %v", err)
		}
		if len(rooms) != 0 {
			t.Fatalf("ListRooms(empty): want none, got %d", len(rooms))
		}

		seeded := []model.Room{
			{ID: "11111111-1111-4111-8111-111111111111", Name: "general", CreatedAt: created},
			{ID: "22222222-2222-4222-8222-222222222222", Name: "random", CreatedAt: created},
			{ID: "33333333-3333-4333-8333-333333333333", Name: "general", CreatedAt: created},
		}
		for i := range seeded {
			if err := st.InsertRoom(&seeded[i]); err != nil {
				t.Fatalf("InsertRoom(%s): %v", seeded[i].Name, err)
			}
		}
		if err := st.InsertRoom(&model.Room{ID: seeded[0].ID, Name: "dup"}); err == nil {
			t.Fatalf("InsertRoom(duplicate id): expected error")
		}

		rooms, err = st.ListRooms()
		if err != nil {
			t.Fatalf("ListRooms: unexpected error: %v", err)
		}
		if diff := cmp.Diff(seeded, rooms); diff != "" {
			t.Errorf("store.ListRooms mismatch (-want +got):\n%s", diff)
		}

		first, err := st.GetRoomByName("general")
		if err != nil {
			t.Fatalf("GetRoomByName: unexpected error: %v", err)
		}
		if first == nil || first.ID != seeded[0].ID {
			t.Errorf("GetRoomByName: want oldest room %s, got %+v", seeded[0].ID, first)
		}
	})
}

func TestReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chat.db")

	st, err := store.New(dbPath, fastHash)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := st.RegisterUser("alice", "pw"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	id, err := st.CreateRoom("lobby", 0)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = store.New(dbPath, fastHash)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if ok, err := st.Authenticate("alice", "pw"); err != nil || !ok {
		t.Errorf("Authenticate after reopen = %t, %v", ok, err)
	}
	if name, err := st.GetRoomName(id); err != nil || name != "lobby" {
		t.Errorf("GetRoomName after reopen = %q, %v", name, err)
	}
}
