package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentpkg/apm/internal/core/domain"
)

func testDigest(seed string) domain.Digest {
	hex := strings.Repeat("0", 64-len(seed)) + seed
	return domain.Digest("sha256:" + hex)
}

func TestLockfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		entry   domain.LockEntry
		wantErr error
	}{
		{
			name:  "Valid",
			entry: domain.LockEntry{Version: "1.0.0", Source: "local", Checksum: testDigest("a1")},
		},
		{
			name:  "Valid With Source Pair",
			entry: domain.LockEntry{Version: "1.0.0", Checksum: testDigest("a1"), SourceName: "upstream", SourceCommit: "deadbeef"},
		},
		{
			name:    "Bad Version",
			entry:   domain.LockEntry{Version: "1.0", Checksum: testDigest("a1")},
			wantErr: domain.ErrInvalidVersion,
		},
		{
			name:    "Bad Checksum",
			entry:   domain.LockEntry{Version: "1.0.0", Checksum: "sha256:zzz"},
			wantErr: domain.ErrInvalidDigest,
		},
		{
			name:    "Source Name Without Commit",
			entry:   domain.LockEntry{Version: "1.0.0", Checksum: testDigest("a1"), SourceName: "upstream"},
			wantErr: domain.ErrInvalidLockfile,
		},
		{
			name:    "Source Commit Without Name",
			entry:   domain.LockEntry{Version: "1.0.0", Checksum: testDigest("a1"), SourceCommit: "deadbeef"},
			wantErr: domain.ErrInvalidLockfile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lf := domain.NewLockfile()
			lf.Packages["pkg"] = tt.entry
			err := lf.Validate()
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLockfile_Dependents(t *testing.T) {
	lf := domain.NewLockfile()
	lf.Packages["app-a"] = domain.LockEntry{
		Version:      "1.0.0",
		Dependencies: map[string]string{"shared-lib": "1.2.0"},
	}
	lf.Packages["app-b"] = domain.LockEntry{
		Version:      "2.0.0",
		Dependencies: map[string]string{"shared-lib": "1.2.0", "other": "1.0.0"},
	}
	lf.Packages["shared-lib"] = domain.LockEntry{Version: "1.2.0"}
	lf.Packages["standalone"] = domain.LockEntry{Version: "0.1.0"}

	assert.Equal(t, []string{"app-a", "app-b"}, lf.Dependents("shared-lib"))
	assert.Empty(t, lf.Dependents("standalone"))
	assert.Empty(t, lf.Dependents("shared-lib-unknown"))
}
