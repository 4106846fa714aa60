package pkgmod

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/input-output-hk/hermes-sub003/internal/archive"
	"github.com/input-output-hk/hermes-sub003/internal/hashsign"
	"github.com/input-output-hk/hermes-sub003/internal/manifest"
)

func writeTestModuleManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "module.wasm"), []byte("\x00asm"))
	mustWrite(t, filepath.Join(dir, "metadata.json"),
		[]byte(`{"name":"auth","version":"1.0.0","build_date":"2020-01-01T00:00:00Z"}`))
	mustWrite(t, filepath.Join(dir, "manifest.json"),
		[]byte(`{"component":"module.wasm","metadata":"metadata.json"}`))

	m, err := manifest.LoadManifest(filepath.Join(dir, "manifest.json"))
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	return m
}

func mustWrite(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// testSelfSignedCert builds a throwaway self-signed Ed25519 certificate for
// the given private key, returning both its PEM encoding (for CertStore
// insertion) and the parsed certificate (for Sign/roots).
func testSelfSignedCert(t *testing.T, priv ed25519.PrivateKey) ([]byte, *x509.Certificate) {
	t.Helper()
	pub := priv.Public().(ed25519.PublicKey)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "hermes-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, priv)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), cert
}

func rootsFor(cert *x509.Certificate) *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return pool
}

func TestBuildSignValidateRoundTrip(t *testing.T) {
	m := writeTestModuleManifest(t)
	outDir := t.TempDir()
	outPath := filepath.Join(outDir, "auth.module")

	mp, err := BuildModuleFromManifest(m, outPath, "", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	_, priv, err := hashsign.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	store := hashsign.NewCertStore()
	certPEM, cert := testSelfSignedCert(t, priv)
	if _, err := store.Insert(certPEM); err != nil {
		t.Fatalf("insert cert: %v", err)
	}

	if err := SignModule(mp, priv, cert); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := mp.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenModulePackage(outPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if err := reopened.Validate(false, store, rootsFor(cert)); err != nil {
		t.Fatalf("validate trusted: %v", err)
	}
}

func writeTestAppManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "module.wasm"), []byte("\x00asm"))
	mustWrite(t, filepath.Join(dir, "module_metadata.json"),
		[]byte(`{"name":"auth","version":"1.0.0","build_date":"2020-01-01T00:00:00Z"}`))
	mustWrite(t, filepath.Join(dir, "module_manifest.json"),
		[]byte(`{"component":"module.wasm","metadata":"module_metadata.json"}`))
	mustWrite(t, filepath.Join(dir, "app_metadata.json"),
		[]byte(`{"name":"wallet","version":"1.0.0","build_date":"2020-01-01T00:00:00Z"}`))
	mustWrite(t, filepath.Join(dir, "app_manifest.json"),
		[]byte(`{"metadata":"app_metadata.json","modules":{"auth":"module_manifest.json"}}`))

	m, err := manifest.LoadManifest(filepath.Join(dir, "app_manifest.json"))
	if err != nil {
		t.Fatalf("load app manifest: %v", err)
	}
	return m
}

func TestBuildSignValidateApplicationRoundTrip(t *testing.T) {
	m := writeTestAppManifest(t)
	outPath := filepath.Join(t.TempDir(), "wallet.app")

	ap, err := BuildApplicationFromManifest(m, outPath, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := ap.ModuleNames(); len(got) != 1 || got[0] != "auth" {
		t.Fatalf("module names = %v, want [auth]", got)
	}

	_, priv, err := hashsign.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	store := hashsign.NewCertStore()
	certPEM, cert := testSelfSignedCert(t, priv)
	if _, err := store.Insert(certPEM); err != nil {
		t.Fatalf("insert cert: %v", err)
	}
	if err := SignApplication(ap, priv, cert); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := ap.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenApplicationPackage(outPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if err := reopened.Validate(false, store, rootsFor(cert)); err != nil {
		t.Fatalf("validate trusted: %v", err)
	}
}

// TestSignModuleAfterReopenPersists guards the archive.Read-mode flush gap:
// a package built and closed in one process, then reopened for signing in a
// later one (exactly what `hermes module sign` does), must actually persist
// signature.json rather than silently discarding it on close.
func TestSignModuleAfterReopenPersists(t *testing.T) {
	m := writeTestModuleManifest(t)
	outPath := filepath.Join(t.TempDir(), "auth.module")

	mp, err := BuildModuleFromManifest(m, outPath, "", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := mp.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, priv, err := hashsign.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	store := hashsign.NewCertStore()
	certPEM, cert := testSelfSignedCert(t, priv)
	if _, err := store.Insert(certPEM); err != nil {
		t.Fatalf("insert cert: %v", err)
	}

	reopened, err := OpenModulePackageForSigning(outPath)
	if err != nil {
		t.Fatalf("reopen for signing: %v", err)
	}
	if err := SignModule(reopened, priv, cert); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := reopened.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	verify, err := OpenModulePackage(outPath)
	if err != nil {
		t.Fatalf("reopen for verify: %v", err)
	}
	defer verify.Close()
	if err := verify.Validate(false, store, rootsFor(cert)); err != nil {
		t.Fatalf("validate after reopen-sign: %v", err)
	}
}

func TestValidateRejectsTamperedMetadata(t *testing.T) {
	m := writeTestModuleManifest(t)
	outDir := t.TempDir()
	outPath := filepath.Join(outDir, "auth.module")

	mp, err := BuildModuleFromManifest(m, outPath, "", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, priv, err := hashsign.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	store := hashsign.NewCertStore()
	certPEM, cert := testSelfSignedCert(t, priv)
	if _, err := store.Insert(certPEM); err != nil {
		t.Fatalf("insert cert: %v", err)
	}
	if err := SignModule(mp, priv, cert); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := mp.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Tamper: reopen for write and overwrite metadata.json in place, leaving
	// the original signature.json (and its embedded hash) untouched.
	tampered, err := archive.Open(outPath, archive.ReadWrite)
	if err != nil {
		t.Fatalf("reopen for write: %v", err)
	}
	if err := tampered.OverwriteDataset(pathMetadata,
		[]byte(`{"name":"evil","version":"1.0.0","build_date":"2020-01-01T00:00:00Z"}`)); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if err := tampered.Close(); err != nil {
		t.Fatalf("close tampered: %v", err)
	}

	reopened, err := OpenModulePackage(outPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if err := reopened.Validate(false, store, rootsFor(cert)); err == nil {
		t.Fatalf("expected integrity error for tampered metadata")
	}
	if err := reopened.Validate(true, store, nil); err != nil {
		t.Fatalf("expected untrusted validate to ignore signature entirely: %v", err)
	}
}
