package registry

import "testing"

func TestNew_SeededCatalog(t *testing.T) {
	reg := New()

	if len(reg.All()) == 0 {
		t.Fatalf("registry must start with the simulated scan")
	}
	if _, ok := reg.Get("com.instagram.android"); !ok {
		t.Fatalf("expected Instagram in the seed catalog")
	}
}

func TestBulkRegister_UpsertCounts(t *testing.T) {
	reg := New()
	before := len(reg.All())

	registered, updated := reg.BulkRegister([]DetectedApp{
		{PackageName: "com.instagram.android", AppName: "Instagram", Category: "social"},
		{PackageName: "com.example.new", AppName: "Example", Category: "productivity"},
		{PackageName: "   ", AppName: "Blank"},
	})

	if registered != 1 {
		t.Fatalf("expected 1 new registration, got %d", registered)
	}
	if updated != 1 {
		t.Fatalf("expected 1 update, got %d", updated)
	}
	if got := len(reg.All()); got != before+1 {
		t.Fatalf("expected %d apps, got %d", before+1, got)
	}
}

func TestBulkRegister_FillsDisplayName(t *testing.T) {
	reg := New()
	reg.BulkRegister([]DetectedApp{
		{PackageName: "com.example.bare", AppName: "Bare", Category: "GAMES"},
	})

	app, ok := reg.Get("com.example.bare")
	if !ok {
		t.Fatalf("expected the app to be registered")
	}
	if app.DisplayName != "Bare" {
		t.Fatalf("display name must default to the app name, got %q", app.DisplayName)
	}
	if app.Category != "games" {
		t.Fatalf("category must normalize to lowercase, got %q", app.Category)
	}
}

func TestSearch(t *testing.T) {
	reg := New()

	byName := reg.Search("tiktok", "", 0)
	if len(byName) != 1 || byName[0].PackageName != "com.zhiliaoapp.musically" {
		t.Fatalf("name search failed: %+v", byName)
	}

	byPackage := reg.Search("com.whatsapp", "", 0)
	if len(byPackage) != 1 || byPackage[0].AppName != "WhatsApp" {
		t.Fatalf("package search failed: %+v", byPackage)
	}

	social := reg.Search("", "social", 0)
	for _, app := range social {
		if app.Category != "social" {
			t.Fatalf("category filter leaked %+v", app)
		}
	}
	if len(social) == 0 {
		t.Fatalf("expected social apps in the seed catalog")
	}

	limited := reg.Search("", "social", 2)
	if len(limited) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(limited))
	}

	if got := reg.Search("definitely-not-an-app", "", 0); len(got) != 0 {
		t.Fatalf("expected no matches, got %+v", got)
	}
}

func TestCategories_SortedByCount(t *testing.T) {
	reg := New()
	counts := reg.Categories()
	if len(counts) == 0 {
		t.Fatalf("expected categories from the seed catalog")
	}

	for i := 1; i < len(counts); i++ {
		if counts[i].Count > counts[i-1].Count {
			t.Fatalf("categories must be sorted by count descending: %+v", counts)
		}
	}

	if counts[0].Name != "social" {
		t.Fatalf("social is the largest seed category, got %q", counts[0].Name)
	}
	if counts[0].DisplayName != "Social" {
		t.Fatalf("expected title-cased display name, got %q", counts[0].DisplayName)
	}
}
