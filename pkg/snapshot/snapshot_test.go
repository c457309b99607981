package snapshot

import (
	"bytes"
	"errors"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/weberc2/simfs/pkg/volume"
	. "github.com/weberc2/simfs/pkg/types"
)

type objectStoreFake map[[2]string][]byte

func (osf objectStoreFake) PutObject(bucket, key string, data io.ReadSeeker) error {
	var b bytes.Buffer
	if _, err := io.Copy(&b, data); err != nil {
		return err
	}
	osf[[2]string{bucket, key}] = b.Bytes()
	return nil
}

func (osf objectStoreFake) GetObject(bucket, key string) (io.ReadCloser, error) {
	data, found := osf[[2]string{bucket, key}]
	if !found {
		return nil, &ObjectNotFoundErr{Bucket: bucket, Key: key}
	}
	return ioutil.NopCloser(bytes.NewReader(data)), nil
}

func (osf objectStoreFake) ListObjects(bucket, prefix string) ([]string, error) {
	var out []string
	for key := range osf {
		if key[0] == bucket && strings.HasPrefix(key[1], prefix) {
			out = append(out, key[1])
		}
	}
	return out, nil
}

func (osf objectStoreFake) DeleteObject(bucket, key string) error {
	k := [2]string{bucket, key}
	if _, found := osf[k]; !found {
		return &ObjectNotFoundErr{Bucket: bucket, Key: key}
	}
	delete(osf, k)
	return nil
}

func TestGzipObjectStore(t *testing.T) {
	fake := objectStoreFake{}
	objectStore := GzipObjectStore{fake}
	data := strings.Repeat("\x00", 1<<16) + "my-data"
	if err := objectStore.PutObject(
		"my-bucket",
		"my-key",
		strings.NewReader(data),
	); err != nil {
		t.Fatalf("Unexpected err: %v", err)
	}
	if stored := len(fake[[2]string{"my-bucket", "my-key"}]); stored >= len(data)/10 {
		t.Fatalf("wanted compressed object; found `%d` bytes", stored)
	}

	body, err := objectStore.GetObject("my-bucket", "my-key")
	if err != nil {
		t.Fatalf("Unexpected err: %v", err)
	}
	defer body.Close()

	found, err := ioutil.ReadAll(body)
	if err != nil {
		t.Fatalf("Unexpected err: %v", err)
	}
	if string(found) != data {
		t.Fatalf("wanted `%d` bytes ending in 'my-data'; found `%d` bytes", len(data), len(found))
	}

	if _, err := objectStore.GetObject("my-bucket", "missing"); !errors.Is(err, NotFoundErr) {
		t.Fatalf("GetObject(): wanted `%v`; found `%v`", NotFoundErr, err)
	}
}

func newSnapshots() *Snapshots {
	logger := logrus.New()
	logger.Out = ioutil.Discard
	return &Snapshots{
		Store:  &GzipObjectStore{objectStoreFake{}},
		Bucket: "images",
		Prefix: "simfs/",
		Logger: logger,
	}
}

func newImage(t *testing.T, path string, contents string) *volume.Volume {
	t.Helper()
	v := volume.New(path)
	v.Geometry = Geometry{DiskSize: 128 * 512, BlockSize: 512, Inodes: 16}
	logger := logrus.New()
	logger.Out = ioutil.Discard
	v.Logger = logger
	t.Cleanup(func() { v.Close() })
	if err := v.Format(); err != nil {
		t.Fatalf("Format(): unexpected error: %v", err)
	}
	if err := v.Mount(); err != nil {
		t.Fatalf("Mount(): unexpected error: %v", err)
	}
	ino, err := v.Create("file")
	if err != nil {
		t.Fatalf("Create(): unexpected error: %v", err)
	}
	if _, err := v.Write(ino, 0, []byte(contents)); err != nil {
		t.Fatalf("Write(): unexpected error: %v", err)
	}
	return v
}

func TestPushPull(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.img")
	v := newImage(t, src, "snapshotted")
	snapshots := newSnapshots()

	// mounted images are locked
	if err := snapshots.Push(src, "one"); !errors.Is(err, VolumeBusyErr) {
		t.Fatalf("Push(): wanted `%v`; found `%v`", VolumeBusyErr, err)
	}
	if err := v.Unmount(); err != nil {
		t.Fatalf("Unmount(): unexpected error: %v", err)
	}
	if err := snapshots.Push(src, "one"); err != nil {
		t.Fatalf("Push(): unexpected error: %v", err)
	}

	dst := filepath.Join(dir, "dst.img")
	if err := snapshots.Pull("one", dst); err != nil {
		t.Fatalf("Pull(): unexpected error: %v", err)
	}

	pulled := volume.New(dst)
	t.Cleanup(func() { pulled.Close() })
	if err := pulled.Mount(); err != nil {
		t.Fatalf("Mount(): unexpected error: %v", err)
	}
	ino, err := pulled.Open("file")
	if err != nil {
		t.Fatalf("Open(): unexpected error: %v", err)
	}
	p := make([]byte, 64)
	n, err := pulled.Read(ino, 0, p)
	if err != nil {
		t.Fatalf("Read(): unexpected error: %v", err)
	}
	if string(p[:n]) != "snapshotted" {
		t.Fatalf("Read(): wanted `snapshotted`; found `%s`", p[:n])
	}

	// pulling over a mounted image is refused
	if err := snapshots.Pull("one", dst); !errors.Is(err, VolumeBusyErr) {
		t.Fatalf("Pull(): wanted `%v`; found `%v`", VolumeBusyErr, err)
	}
}

func TestPushRejectsNonVolumes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.img")
	if err := os.WriteFile(path, []byte(strings.Repeat("junk", 1024)), 0644); err != nil {
		t.Fatalf("WriteFile(): unexpected error: %v", err)
	}
	if err := newSnapshots().Push(path, "junk"); !errors.Is(err, CorruptVolumeErr) {
		t.Fatalf("Push(): wanted `%v`; found `%v`", CorruptVolumeErr, err)
	}
}

func TestPullBadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.img")
	v := newImage(t, path, "keep me")
	if err := v.Unmount(); err != nil {
		t.Fatalf("Unmount(): unexpected error: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(): unexpected error: %v", err)
	}

	snapshots := newSnapshots()
	if err := snapshots.Store.PutObject(
		snapshots.Bucket,
		snapshots.key("bad"),
		strings.NewReader("not a volume"),
	); err != nil {
		t.Fatalf("PutObject(): unexpected error: %v", err)
	}

	if err := snapshots.Pull("missing", path); !errors.Is(err, NotFoundErr) {
		t.Fatalf("Pull(): wanted `%v`; found `%v`", NotFoundErr, err)
	}
	if err := snapshots.Pull("bad", path); !errors.Is(err, CorruptVolumeErr) {
		t.Fatalf("Pull(): wanted `%v`; found `%v`", CorruptVolumeErr, err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(): unexpected error: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("Pull(): image changed by a failed pull")
	}

	// staging files are cleaned up
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(): unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("wanted only the image in `%s`; found `%d` entries", dir, len(entries))
	}
}

func TestListDelete(t *testing.T) {
	snapshots := newSnapshots()
	for _, name := range []string{"b", "a"} {
		if err := snapshots.Store.PutObject(
			snapshots.Bucket,
			snapshots.key(name),
			strings.NewReader(name),
		); err != nil {
			t.Fatalf("PutObject(): unexpected error: %v", err)
		}
	}

	names, err := snapshots.List()
	if err != nil {
		t.Fatalf("List(): unexpected error: %v", err)
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "a,b" {
		t.Fatalf("List(): wanted `[a b]`; found `%v`", names)
	}

	if err := snapshots.Delete("a"); err != nil {
		t.Fatalf("Delete(): unexpected error: %v", err)
	}
	if err := snapshots.Delete("a"); !errors.Is(err, NotFoundErr) {
		t.Fatalf("Delete(): wanted `%v`; found `%v`", NotFoundErr, err)
	}
}
