package cloud

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// mockS3Client implements s3API for testing.
type mockS3Client struct {
	put     *s3.PutObjectInput
	putErr  error
	getBody string
	getLen  *int64
	getErr  error
}

func (m *mockS3Client) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.put = in
	return &s3.PutObjectOutput{}, m.putErr
}

func (m *mockS3Client) GetObject(_ context.Context, _ *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(m.getBody)),
		ContentLength: m.getLen,
	}, nil
}

type mockPaginator struct {
	pages []*s3.ListObjectsV2Output
	idx   int
	err   error
}

func (m *mockPaginator) HasMorePages() bool {
	return m.idx < len(m.pages)
}

func (m *mockPaginator) NextPage(_ context.Context, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if m.err != nil {
		return nil, m.err
	}
	page := m.pages[m.idx]
	m.idx++
	return page, nil
}

func newTestS3Backend(client s3API, pag s3Paginator) (*s3Backend, *string) {
	var gotPrefix string
	return &s3Backend{
		client: client,
		bucket: "logs",
		newPaginator: func(_, p string) s3Paginator {
			gotPrefix = p
			return pag
		},
	}, &gotPrefix
}

func TestS3Put(t *testing.T) {
	client := &mockS3Client{}
	b, _ := newTestS3Backend(client, nil)
	err := b.Put(context.Background(), "out/report.json", strings.NewReader("{}"), 2, "application/json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.put == nil || *client.put.Key != "out/report.json" || *client.put.Bucket != "logs" {
		t.Fatalf("PutObject input = %+v", client.put)
	}
	if client.put.ContentType == nil || *client.put.ContentType != "application/json" {
		t.Error("content type not set")
	}
	if client.put.ContentLength == nil || *client.put.ContentLength != 2 {
		t.Error("content length not set")
	}
}

func TestS3Put_UnknownSize(t *testing.T) {
	client := &mockS3Client{}
	b, _ := newTestS3Backend(client, nil)
	if err := b.Put(context.Background(), "k", strings.NewReader("x"), -1, ""); err != nil {
		t.Fatal(err)
	}
	if client.put.ContentLength != nil || client.put.ContentType != nil {
		t.Errorf("unexpected optional fields: %+v", client.put)
	}
}

func TestS3Put_Error(t *testing.T) {
	b, _ := newTestS3Backend(&mockS3Client{putErr: errors.New("access denied")}, nil)
	err := b.Put(context.Background(), "k", strings.NewReader("x"), 1, "")
	if err == nil || !strings.Contains(err.Error(), "s3 put") {
		t.Errorf("error = %v, want to contain 's3 put'", err)
	}
}

func TestS3Get(t *testing.T) {
	n := int64(13)
	b, _ := newTestS3Backend(&mockS3Client{getBody: "line1\nline2\n", getLen: &n}, nil)
	rc, size, err := b.Get(context.Background(), "access.log")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, _ := io.ReadAll(rc)
	if string(data) != "line1\nline2\n" {
		t.Errorf("body = %q", data)
	}
	if size != 13 {
		t.Errorf("size = %d, want 13", size)
	}
}

func TestS3Get_UnknownLength(t *testing.T) {
	b, _ := newTestS3Backend(&mockS3Client{getBody: "x"}, nil)
	rc, size, err := b.Get(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}
	_ = rc.Close()
	if size != -1 {
		t.Errorf("size = %d, want -1", size)
	}
}

func TestS3Get_NotFound(t *testing.T) {
	b, _ := newTestS3Backend(&mockS3Client{getErr: &s3types.NoSuchKey{}}, nil)
	_, _, err := b.Get(context.Background(), "missing.log")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestS3Get_Error(t *testing.T) {
	b, _ := newTestS3Backend(&mockS3Client{getErr: errors.New("throttled")}, nil)
	_, _, err := b.Get(context.Background(), "k")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "s3 get") {
		t.Errorf("error = %q, want to contain 's3 get'", err)
	}
}

func TestS3List(t *testing.T) {
	key1, key2 := "httpd/a.log", "httpd/b.log.gz"
	size1, size2 := int64(100), int64(200)
	pag := &mockPaginator{
		pages: []*s3.ListObjectsV2Output{
			{Contents: []s3types.Object{{Key: &key1, Size: &size1}}},
			{Contents: []s3types.Object{{Key: nil, Size: &size1}, {Key: &key2, Size: &size2}, {Key: &key1}}},
		},
	}
	b, prefix := newTestS3Backend(&mockS3Client{}, pag)
	objects, err := b.List(context.Background(), "httpd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *prefix != "httpd/" {
		t.Errorf("list prefix = %q, want %q", *prefix, "httpd/")
	}
	if len(objects) != 3 {
		t.Fatalf("got %d objects, want 3", len(objects))
	}
	if objects[1].Key != key2 || objects[1].Size != 200 {
		t.Errorf("objects[1] = %+v", objects[1])
	}
	if objects[2].Size != 0 {
		t.Errorf("nil size should read as 0, got %d", objects[2].Size)
	}
}

func TestS3List_PrefixNotDoubled(t *testing.T) {
	b, prefix := newTestS3Backend(&mockS3Client{}, &mockPaginator{})
	if _, err := b.List(context.Background(), "httpd/"); err != nil {
		t.Fatal(err)
	}
	if *prefix != "httpd/" {
		t.Errorf("list prefix = %q", *prefix)
	}
	if _, err := b.List(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if *prefix != "" {
		t.Errorf("empty prefix became %q", *prefix)
	}
}

func TestS3List_Error(t *testing.T) {
	pag := &mockPaginator{pages: []*s3.ListObjectsV2Output{{}}, err: errors.New("list failed")}
	b, _ := newTestS3Backend(&mockS3Client{}, pag)
	_, err := b.List(context.Background(), "prefix")
	if err == nil || !strings.Contains(err.Error(), "s3 list") {
		t.Errorf("error = %v, want to contain 's3 list'", err)
	}
}
