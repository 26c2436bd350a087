package entity

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBookListing(t *testing.T) {
	img := "https://example.com/cover.jpg"
	base := &BookListing{
		ID:           NewID(),
		Image:        &img,
		BookName:     "Dune",
		BookTitle:    "Dune",
		Genre:        "Science Fiction",
		ListingPrice: "12",
		CreatedAt:    Timestamp(time.Now()),
	}

	t.Run("Clone", func(t *testing.T) {
		c := base.Clone()
		if !c.Equal(base) {
			t.Fatalf("Clone() = %+v, want %+v", c, base)
		}
		*c.Image = "changed"
		if *base.Image != img {
			t.Error("Clone shares the Image pointer")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name    string
			mutate  func(b *BookListing)
			wantErr bool
		}{
			{"valid", func(*BookListing) {}, false},
			{"nil image", func(b *BookListing) { b.Image = nil }, false},
			{"empty id", func(b *BookListing) { b.ID = "" }, true},
			{"empty listing price", func(b *BookListing) { b.ListingPrice = "" }, true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				b := base.Clone()
				tt.mutate(b)
				if err := b.Validate(); (err != nil) != tt.wantErr {
					t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("Equal", func(t *testing.T) {
		other := base.Clone()
		other.Image = nil
		if base.Equal(other) {
			t.Error("listings with different images compare equal")
		}
		var nilListing *BookListing
		if !nilListing.Equal(nil) {
			t.Error("nil listings should compare equal")
		}
	})
}

func TestNewID(t *testing.T) {
	id := NewID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("NewID() = %q is not a UUID: %v", id, err)
	}
	if NewID() == id {
		t.Error("NewID() returned the same value twice")
	}
}

func TestTimestamp(t *testing.T) {
	in := time.Date(2025, 3, 4, 5, 6, 7, 123456789, time.FixedZone("X", 3600))
	got := Timestamp(in)
	want := time.Date(2025, 3, 4, 4, 6, 7, 123000000, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("Timestamp() = %v, want %v", got, want)
	}
}

func TestTimestampJSON(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"trailing zero", time.Date(2025, 3, 4, 5, 6, 7, 120e6, time.UTC), "2025-03-04T05:06:07.120Z"},
		{"whole second", time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC), "2025-03-04T05:06:07.000Z"},
		{"other zone", time.Date(2025, 3, 4, 6, 6, 7, 5e6, time.FixedZone("X", 3600)), "2025-03-04T05:06:07.005Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTimestamp(tt.in); got != tt.want {
				t.Errorf("FormatTimestamp() = %q, want %q", got, tt.want)
			}

			l := &BookListing{ID: "1", ListingPrice: "1", CreatedAt: tt.in}
			data, err := json.Marshal(l)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(data), `"createdAt":"`+tt.want+`"`) {
				t.Errorf("listing JSON = %s, want createdAt %s", data, tt.want)
			}
			var back BookListing
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatal(err)
			}
			if !back.CreatedAt.Equal(tt.in) || back.ListingPrice != "1" || back.Image != nil {
				t.Errorf("round trip = %+v", back)
			}
			if !strings.Contains(string(data), `"image":null`) {
				t.Errorf("listing JSON = %s, want image null", data)
			}

			data, err = json.Marshal([]Sponsor{{ID: "s", Name: "n", CreatedAt: tt.in}})
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(data), `"createdAt":"`+tt.want+`"`) {
				t.Errorf("sponsor JSON = %s, want createdAt %s", data, tt.want)
			}
		})
	}
}
