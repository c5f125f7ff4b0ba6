package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidDate(t *testing.T) {
	valid := []string{"2023-01-01", "2000-12-31"}
	invalid := []string{"2023-13-01", "2023-02-30", "01-01-2023", "", "2023/01/01"}
	for _, d := range valid {
		if _, ok := IsValidDate(d); !ok {
			t.Errorf("IsValidDate(%q) = false, want true", d)
		}
	}
	for _, d := range invalid {
		if _, ok := IsValidDate(d); ok {
			t.Errorf("IsValidDate(%q) = true, want false", d)
		}
	}
}

type taggedRequest struct {
	LocationID string `json:"location_id" validate:"required"`
	Enabled    *bool  `json:"enabled" validate:"required"`
	Day        string `json:"day" validate:"omitempty,datetime=2006-01-02"`
	Internal   string `json:"-" validate:"required"`
}

func TestStruct(t *testing.T) {
	enabled := true

	err := Struct(taggedRequest{LocationID: "L1", Enabled: &enabled, Day: "2025-03-01", Internal: "x"})
	assert.NoError(t, err)

	err = Struct(taggedRequest{Day: "03/01/2025"})
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := verrs.ToMap()
	assert.Equal(t, "location_id is required", fields["location_id"])
	assert.Equal(t, "enabled is required", fields["enabled"])
	assert.Equal(t, "day must match the format 2006-01-02", fields["day"])
	assert.Contains(t, fields, "internal")
}
