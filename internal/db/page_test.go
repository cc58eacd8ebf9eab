package db

import "testing"

func TestPageMetaFieldsFallback(t *testing.T) {
	tests := []struct {
		name string
		page Page
		want MetaFields
	}{
		{
			name: "all fields set",
			page: Page{NavTitle: "About", H1: "About us", PageTitle: "About the team", BrowserTitle: "About | Site", MetaDescription: " Who we are "},
			want: MetaFields{PageTitle: "About the team", BrowserTitle: "About | Site", MetaDescription: "Who we are", H1: "About us"},
		},
		{
			name: "only nav title",
			page: Page{NavTitle: "Contact"},
			want: MetaFields{PageTitle: "Contact", BrowserTitle: "Contact", H1: "Contact"},
		},
		{
			name: "browser title falls back to page title",
			page: Page{H1: "Jobs", PageTitle: "Careers"},
			want: MetaFields{PageTitle: "Careers", BrowserTitle: "Careers", H1: "Jobs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.page.MetaFields()
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestPageFullURL(t *testing.T) {
	page := Page{FullPath: "about/team"}
	if got := page.FullURL(); got != "/about/team" {
		t.Fatalf("expected /about/team, got %q", got)
	}
}
