package service

import (
	"strings"
	"testing"

	"messengerhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validToken = "EAAB" + strings.Repeat("a1B2c3D4", 8)

func TestNewPageRegistry(t *testing.T) {
	tests := []struct {
		name    string
		pages   []models.PageConfig
		wantErr string
	}{
		{
			name:  "empty configuration",
			pages: nil,
		},
		{
			name: "multiple pages",
			pages: []models.PageConfig{
				{ID: "1001", Name: "Shop", AccessToken: validToken},
				{ID: "1002", Name: "Support", AccessToken: validToken},
			},
		},
		{
			name:    "empty id",
			pages:   []models.PageConfig{{ID: "", Name: "Shop"}},
			wantErr: "empty page id",
		},
		{
			name: "duplicate id",
			pages: []models.PageConfig{
				{ID: "1001", Name: "Shop"},
				{ID: "1001", Name: "Other"},
			},
			wantErr: "duplicate page id: 1001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewPageRegistry(tt.pages)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.pages), r.Count())
		})
	}
}

func TestPageRegistry_Lookup(t *testing.T) {
	r, err := NewPageRegistry([]models.PageConfig{
		{ID: "1002", Name: "Support", AccessToken: "your_token_here"},
		{ID: "1001", Name: "Shop", AccessToken: validToken},
	})
	require.NoError(t, err)

	page, ok := r.Get("1001")
	assert.True(t, ok)
	assert.Equal(t, "Shop", page.Name)

	_, ok = r.Get("9999")
	assert.False(t, ok)

	pages := r.Pages()
	require.Len(t, pages, 2)
	assert.Equal(t, "1002", pages[0].ID)
	assert.Equal(t, "1001", pages[1].ID)

	assert.Equal(t, []string{"1002"}, r.InvalidTokenPages())
}
