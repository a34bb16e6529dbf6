package server_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/roomchat/pkg/model"
	"github.com/NicolasHaas/roomchat/pkg/server"
	"github.com/NicolasHaas/roomchat/pkg/store"
)

const seedID = "6f1c2d3e-4a5b-4c6d-8e7f-901234567890"

func TestImportRoomsFromYAML(t *testing.T) {
	st := store.NewMemory(fastHash)
	data := []byte(`
rooms:
  - name: lobby
  - id: ` + seedID + `
    name: announcements
`)

	created, err := server.ImportRoomsFromYAML(data, st)
	if err != nil {
		t.Fatalf("ImportRoomsFromYAML: %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d; want 2", created)
	}

	name, err := st.GetRoomName(seedID)
	if err != nil || name != "announcements" {
		t.Fatalf("GetRoomName(seed) = %q, %v", name, err)
	}
	lobby, err := st.GetRoomByName("lobby")
	if err != nil || lobby == nil {
		t.Fatalf("GetRoomByName(lobby) = %v, %v", lobby, err)
	}
	if lobby.OwnerID != 0 {
		t.Fatalf("seeded room owner = %d; want 0", lobby.OwnerID)
	}

	// Importing again creates nothing.
	created, err = server.ImportRoomsFromYAML(data, st)
	if err != nil || created != 0 {
		t.Fatalf("second import = %d, %v; want 0, nil", created, err)
	}
	rooms, _ := st.ListRooms()
	if len(rooms) != 2 {
		t.Fatalf("ListRooms = %d rooms; want 2", len(rooms))
	}
}

func TestImportRoomsSkipsInvalid(t *testing.T) {
	st := store.NewMemory(fastHash)
	data := []byte("rooms:\n  - name: \"\"\n  - id: not-a-uuid\n    name: bad\n  - name: ok\n")

	created, err := server.ImportRoomsFromYAML(data, st)
	if err != nil {
		t.Fatalf("ImportRoomsFromYAML: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d; want 1", created)
	}
}

func TestImportRoomsBadYAML(t *testing.T) {
	if _, err := server.ImportRoomsFromYAML([]byte("rooms: [unclosed"), store.NewMemory()); err == nil {
		t.Fatalf("ImportRoomsFromYAML accepted malformed YAML")
	}
}

func TestLoadRoomsFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.yaml")
	if err := os.WriteFile(path, []byte("rooms:\n  - name: general\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	st := store.NewMemory(fastHash)
	if created, err := server.LoadRoomsFromYAML(path, st); err != nil || created != 1 {
		t.Fatalf("LoadRoomsFromYAML = %d, %v; want 1, nil", created, err)
	}
}

func TestExportRoomsRoundTrip(t *testing.T) {
	src := store.NewMemory(fastHash)
	if err := src.InsertRoom(&model.Room{ID: seedID, Name: "lobby"}); err != nil {
		t.Fatalf("InsertRoom: %v", err)
	}
	if _, err := src.CreateRoom("random", 0); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	data, err := server.ExportRoomsYAML(src)
	if err != nil {
		t.Fatalf("ExportRoomsYAML: %v", err)
	}

	dst := store.NewMemory(fastHash)
	if _, err := server.ImportRoomsFromYAML(data, dst); err != nil {
		t.Fatalf("ImportRoomsFromYAML: %v", err)
	}
	want, _ := src.ListRooms()
	got, _ := dst.ListRooms()
	ids := func(rooms []model.Room) []string {
		out := make([]string, 0, len(rooms))
		for _, r := range rooms {
			out = append(out, r.ID+"/"+r.Name)
		}
		return out
	}
	if diff := cmp.Diff(ids(want), ids(got)); diff != "" {
		t.Fatalf("rooms mismatch after round trip (-want +got):\n%s", diff)
	}
}

func TestExportUsersOmitsPasswords(t *testing.T) {
	st := store.NewMemory(fastHash)
	if _, err := st.RegisterUser("alice", "hunter2"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	data, err := server.ExportUsersYAML(st)
	if err != nil {
		t.Fatalf("ExportUsersYAML: %v", err)
	}
	if strings.Contains(string(data), "argon2") {
		t.Fatalf("export leaked a password hash:\n%s", data)
	}

	var export server.UsersExport
	if err := yaml.Unmarshal(data, &export); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(export.Users) != 1 || export.Users[0].Username != "alice" || export.Users[0].ID != 1 {
		t.Fatalf("unexpected export: %+v", export)
	}
}
