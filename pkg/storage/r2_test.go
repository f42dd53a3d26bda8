package storage_test

import (
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jh125486/rubricscore/pkg/storage"
)

func skipIfNoR2(t *testing.T) {
	if os.Getenv("R2_ENDPOINT") == "" {
		t.Skip("Skipping R2 test: R2_ENDPOINT environment variable not set")
	}
}

func testR2Config(bucket string) *storage.R2Config {
	return &storage.R2Config{
		Endpoint:        os.Getenv("R2_ENDPOINT"),
		Bucket:          bucket + "-" + strconv.FormatInt(time.Now().UnixNano(), 36),
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
	}
}

func TestNewR2Storage(t *testing.T) {
	skipIfNoR2(t)
	t.Parallel()

	tests := []struct {
		name      string
		cfg       *storage.R2Config
		wantError bool
		errorMsg  string
	}{
		{
			name: "valid_config",
			cfg:  testR2Config("test-bucket"),
		},
		{
			name: "invalid_endpoint",
			cfg: &storage.R2Config{
				Endpoint:        "http://invalid-url:9999",
				Bucket:          "test-bucket",
				AccessKeyID:     "test",
				SecretAccessKey: "test",
				UsePathStyle:    true,
			},
			wantError: true,
			errorMsg:  "failed to ensure bucket exists",
		},
		{
			name: "empty_credentials",
			cfg: func() *storage.R2Config {
				cfg := testR2Config("test-empty-creds")
				cfg.AccessKeyID, cfg.SecretAccessKey = "", ""
				return cfg
			}(),
			wantError: true,
			errorMsg:  "static credentials are empty",
		},
		{
			name: "custom_region",
			cfg: func() *storage.R2Config {
				cfg := testR2Config("test-custom-region")
				cfg.Region = "eu-west-1"
				return cfg
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := storage.NewR2Storage(testContext(t), tt.cfg)
			if tt.wantError {
				require.Error(t, err)
				require.Nil(t, s)
				require.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, s)

			// bucket now exists; a second instance must reuse it
			s2, err := storage.NewR2Storage(testContext(t), tt.cfg)
			require.NoError(t, err)
			require.NoError(t, s2.Close())
		})
	}
}

func TestR2Storage(t *testing.T) {
	skipIfNoR2(t)
	t.Parallel()

	store, err := storage.NewR2Storage(testContext(t), testR2Config("test-contract"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exerciseStorage(t, store, "")
}
