package settings

import (
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/yllada/vpnht/common"
	vkeyring "github.com/yllada/vpnht/keyring"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	keyring.MockInit()
	dir := t.TempDir()
	path := filepath.Join(dir, common.SettingsFileName)
	s, err := Open(path, vkeyring.New(dir), common.SettingPassword)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestStore_MissingKeysAreZero(t *testing.T) {
	s, _ := openTestStore(t)

	b, err := s.GetBool(common.SettingInstalled)
	if err != nil || b {
		t.Errorf("GetBool(missing) = %v, %v; want false, nil", b, err)
	}
	str, err := s.GetString(common.SettingUsername)
	if err != nil || str != "" {
		t.Errorf("GetString(missing) = %q, %v; want empty", str, err)
	}
	pw, err := s.GetString(common.SettingPassword)
	if err != nil || pw != "" {
		t.Errorf("GetString(missing secret) = %q, %v; want empty", pw, err)
	}
}

func TestStore_BoolAndStringPersist(t *testing.T) {
	s, path := openTestStore(t)

	if err := s.SetBool(common.SettingInstalled, true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetString(common.SettingUsername, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetBool(common.SettingInstalled, false); err != nil {
		t.Fatal(err)
	}
	if err := s.SetBool(common.SettingDisabled, true); err != nil {
		t.Fatal(err)
	}
	s.Close()

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if v, _ := reopened.GetBool(common.SettingInstalled); v {
		t.Error("installed flag should read back as false after overwrite")
	}
	if v, _ := reopened.GetBool(common.SettingDisabled); !v {
		t.Error("disabled flag should persist")
	}
	if v, _ := reopened.GetString(common.SettingUsername); v != "alice" {
		t.Errorf("username = %q, want alice", v)
	}
}

func TestStore_SecretsBypassDatabase(t *testing.T) {
	s, _ := openTestStore(t)

	if err := s.SetString(common.SettingPassword, "hunter2"); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetString(common.SettingPassword)
	if err != nil || got != "hunter2" {
		t.Errorf("GetString(secret) = %q, %v", got, err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM settings WHERE key = ?`, common.SettingPassword).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Error("secret settings must not be written to the database")
	}
}

func TestStore_NonBooleanValue(t *testing.T) {
	s, _ := openTestStore(t)

	if err := s.SetString(common.SettingDisabled, "maybe"); err != nil {
		t.Fatal(err)
	}
	v, err := s.GetBool(common.SettingDisabled)
	if err != nil || v {
		t.Errorf("GetBool(non-boolean) = %v, %v; want false, nil", v, err)
	}
}
