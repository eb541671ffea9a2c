package resources

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/campusevents/server/internal/domain/reports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	err        error
	gotCollege int64
}

func (s *stubLister) Categories(_ context.Context, collegeID int64) ([]reports.Category, error) {
	s.gotCollege = collegeID
	if s.err != nil {
		return nil, s.err
	}
	return []reports.Category{{ID: 1, Name: "Seminar", EventCount: 4}}, nil
}

func TestCategoryResources_Read(t *testing.T) {
	lister := &stubLister{}
	res := NewCategoryResources(lister, 3)

	req := mcp.ReadResourceRequest{}
	req.Params.URI = CategoriesURI
	contents, err := res.ReadHandler(context.Background(), req)

	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, CategoriesURI, text.URI)
	assert.Equal(t, "application/json", text.MIMEType)

	var got []reports.Category
	require.NoError(t, json.Unmarshal([]byte(text.Text), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Seminar", got[0].Name)
	assert.Equal(t, int64(3), lister.gotCollege)
}

func TestCategoryResources_ReadError(t *testing.T) {
	res := NewCategoryResources(&stubLister{err: errors.New("connection reset")}, 3)

	_, err := res.ReadHandler(context.Background(), mcp.ReadResourceRequest{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "list categories")
}

func TestCategoryResources_Definition(t *testing.T) {
	r := NewCategoryResources(&stubLister{}, 1).Resource()
	assert.Equal(t, CategoriesURI, r.URI)
	assert.Equal(t, "application/json", r.MIMEType)
}
