package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	objects map[string]string
	failOn  string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	if aws.ToString(in.Key) == f.failOn {
		return nil, errors.New("access denied")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		uri     string
		want    Target
		wantErr bool
	}{
		{"s3://bucket", Target{Bucket: "bucket"}, false},
		{"s3://bucket/", Target{Bucket: "bucket"}, false},
		{"s3://bucket/fns/v1/", Target{Bucket: "bucket", Prefix: "fns/v1"}, false},
		{"https://bucket/x", Target{}, true},
		{"s3:///x", Target{}, true},
		{"bucket/x", Target{}, true},
	}
	for _, tt := range tests {
		got, err := ParseTarget(tt.uri)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseTarget(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseTarget(%q) = %+v, want %+v", tt.uri, got, tt.want)
		}
	}
}

func TestTargetKey(t *testing.T) {
	if got := (Target{Bucket: "b"}).Key("a.js"); got != "a.js" {
		t.Fatalf("Key = %q", got)
	}
	if got := (Target{Bucket: "b", Prefix: "p/q"}).Key("a.js"); got != "p/q/a.js" {
		t.Fatalf("Key = %q", got)
	}
}

func writeArtifacts(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var files []string
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte("// "+n), 0644); err != nil {
			t.Fatal(err)
		}
		files = append(files, p)
	}
	return files
}

func TestPublish(t *testing.T) {
	client := &fakeS3{objects: map[string]string{}}
	files := writeArtifacts(t, "a.js", "b.js")

	keys, err := New(client).Publish(context.Background(), Target{Bucket: "bkt", Prefix: "fns"}, files)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(keys) != 2 || keys[0] != "fns/a.js" || keys[1] != "fns/b.js" {
		t.Fatalf("keys = %v", keys)
	}
	if client.objects["bkt/fns/a.js"] != "// a.js" {
		t.Fatalf("objects = %v", client.objects)
	}
}

func TestPublish_StopsOnError(t *testing.T) {
	client := &fakeS3{objects: map[string]string{}, failOn: "a.js"}
	files := writeArtifacts(t, "a.js", "b.js")

	keys, err := New(client).Publish(context.Background(), Target{Bucket: "bkt"}, files)
	if err == nil {
		t.Fatal("expected upload error")
	}
	if len(keys) != 0 || len(client.objects) != 0 {
		t.Fatalf("nothing should be uploaded after the first failure: %v %v", keys, client.objects)
	}
}

func TestNewFromEnv_StaticCredentials(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))

	pub, err := NewFromEnv(context.Background(), Options{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	client, ok := pub.client.(*s3.Client)
	if !ok {
		t.Fatalf("client = %T, want *s3.Client", pub.client)
	}
	if opts := client.Options(); aws.ToString(opts.BaseEndpoint) != "http://localhost:9000" || !opts.UsePathStyle {
		t.Fatalf("endpoint options not applied: %v %v", aws.ToString(opts.BaseEndpoint), opts.UsePathStyle)
	}
}
