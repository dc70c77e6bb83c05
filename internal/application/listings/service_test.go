package listings

import (
	"context"
	"errors"
	"testing"
	"time"

	"realty-backend/internal/application/geocoding"
	"realty-backend/internal/application/query"
	"realty-backend/internal/application/querycache"
	"realty-backend/internal/domain"
	"realty-backend/internal/pkg/validation"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGeocoder struct {
	calls  int
	coords geocoding.Coordinates
	err    error
}

func (f *fakeGeocoder) Geocode(_ context.Context, _ geocoding.Address) (geocoding.Coordinates, error) {
	f.calls++
	return f.coords, f.err
}

// blockingGeocoder holds every call until release is closed.
type blockingGeocoder struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingGeocoder) Geocode(ctx context.Context, _ geocoding.Address) (geocoding.Coordinates, error) {
	close(b.entered)
	select {
	case <-b.release:
		return geocoding.Coordinates{Latitude: 30.25, Longitude: -97.75}, nil
	case <-ctx.Done():
		return geocoding.Coordinates{}, ctx.Err()
	}
}

func setupListingsTest(t *testing.T) (*Service, *gorm.DB, *querycache.MemoryStore) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.Listing{}, &domain.ListingImage{}, &domain.RetiredSlug{}))
	store := querycache.NewMemoryStore()
	svc := &Service{DB: db, Cache: querycache.New(store, time.Minute)}
	return svc, db, store
}

func ptr[T any](v T) *T { return &v }

func seedListing(t *testing.T, db *gorm.DB, owner uuid.UUID, slug string, price float64, published bool, age time.Duration) domain.Listing {
	l := domain.Listing{
		Slug:         slug,
		OwnerID:      owner,
		PropertyType: domain.PropertyHouse,
		Status:       domain.StatusForSale,
		Source:       domain.SourceManual,
		Title:        slug,
		Address:      "1 Main St",
		City:         "Austin",
		Price:        price,
		Published:    published,
		CreatedAt:    time.Now().Add(-age),
	}
	require.NoError(t, db.Create(&l).Error)
	return l
}

func slugsOf(ls []domain.Listing) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.Slug
	}
	return out
}

func TestFetchPublished_FiltersAndSorts(t *testing.T) {
	svc, db, _ := setupListingsTest(t)
	owner := uuid.New()
	seedListing(t, db, owner, "cheap", 100000, true, 3*time.Hour)
	seedListing(t, db, owner, "mid", 300000, true, 2*time.Hour)
	seedListing(t, db, owner, "pricey", 900000, true, time.Hour)
	seedListing(t, db, owner, "draft", 200000, false, 0)

	got, err := svc.FetchPublished(context.Background(), query.FilterRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"pricey", "mid", "cheap"}, slugsOf(got))

	got, err = svc.FetchPublished(context.Background(), query.FilterRequest{MinPrice: ptr(150000.0), SortBy: query.SortPriceAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"mid", "pricey"}, slugsOf(got))
}

func TestFetchPublished_CityIsCaseInsensitiveSubstring(t *testing.T) {
	svc, db, _ := setupListingsTest(t)
	owner := uuid.New()
	l := seedListing(t, db, owner, "a", 1, true, 0)
	require.NoError(t, db.Model(&l).Update("city", "Round Rock").Error)
	seedListing(t, db, owner, "b", 1, true, 0)

	got, err := svc.FetchPublished(context.Background(), query.FilterRequest{City: ptr("  rOUND ")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, slugsOf(got))

	got, err = svc.FetchPublished(context.Background(), query.FilterRequest{City: ptr("50%_")})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchPublished_MinBedsSkipsUnknownBeds(t *testing.T) {
	svc, db, _ := setupListingsTest(t)
	owner := uuid.New()
	withBeds := seedListing(t, db, owner, "three-bed", 1, true, 0)
	require.NoError(t, db.Model(&withBeds).Update("beds", 3).Error)
	seedListing(t, db, owner, "unknown-beds", 1, true, 0)

	got, err := svc.FetchPublished(context.Background(), query.FilterRequest{MinBeds: ptr(0)})
	require.NoError(t, err)
	assert.Equal(t, []string{"three-bed"}, slugsOf(got))
}

func TestFetchOwned_IncludesUnpublishedOfOwnerOnly(t *testing.T) {
	svc, db, _ := setupListingsTest(t)
	owner, other := uuid.New(), uuid.New()
	seedListing(t, db, owner, "mine-draft", 1, false, 0)
	seedListing(t, db, owner, "mine-live", 1, true, time.Hour)
	seedListing(t, db, other, "theirs", 1, true, 0)

	got, err := svc.FetchOwned(context.Background(), owner, query.FilterRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"mine-draft", "mine-live"}, slugsOf(got))
}

func TestFetchBySlug(t *testing.T) {
	svc, db, _ := setupListingsTest(t)
	owner := uuid.New()
	live := seedListing(t, db, owner, "live", 1, true, 0)
	seedListing(t, db, owner, "draft", 1, false, 0)
	require.NoError(t, replaceImages(db, live.ID, []string{"https://img/1.jpg", "https://img/0.jpg"}))

	got, err := svc.FetchBySlug(context.Background(), "live")
	require.NoError(t, err)
	require.Len(t, got.Images, 2)
	assert.Equal(t, "https://img/1.jpg", got.Images[0].ImageURL)
	assert.Equal(t, 1, got.Images[1].SortOrder)

	_, err = svc.FetchBySlug(context.Background(), "draft")
	assert.ErrorIs(t, err, ErrListingNotFound)
	_, err = svc.FetchBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestListPublished_ServedFromCacheUntilMutation(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := setupListingsTest(t)
	owner := uuid.New()
	seedListing(t, db, owner, "first", 1, true, time.Hour)

	got, err := svc.ListPublished(ctx, query.FilterRequest{})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Written behind the service's back: the cached result stays.
	seedListing(t, db, owner, "sneaky", 1, true, 0)
	got, err = svc.ListPublished(ctx, query.FilterRequest{SortBy: query.SortNewest})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, _, err = svc.Create(ctx, owner, ListingInput{
		Title: ptr("New"), Address: ptr("2 Main St"), City: ptr("Austin"), Price: ptr(5.0), Published: ptr(true),
	})
	require.NoError(t, err)
	got, err = svc.ListPublished(ctx, query.FilterRequest{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestCreate_GeneratesUniqueSlugAndImages(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupListingsTest(t)
	owner := uuid.New()
	in := ListingInput{
		Title:    ptr("Charming Bungalow"),
		Address:  ptr("12 Elm St"),
		City:     ptr("São Paulo"),
		Price:    ptr(250000.0),
		Beds:     ptr(3),
		Features: &[]string{" Pool ", "", "Garage"},
		Images:   &[]string{"https://img/a.jpg", "https://img/b.jpg"},
	}

	first, inv, err := svc.Create(ctx, owner, in)
	require.NoError(t, err)
	assert.Equal(t, "charming-bungalow-sao-paulo", first.Slug)
	assert.Equal(t, domain.PropertyHouse, first.PropertyType)
	assert.Equal(t, domain.StatusForSale, first.Status)
	assert.Equal(t, []string{"Pool", "Garage"}, []string(first.Features))
	require.Len(t, first.Images, 2)
	assert.Equal(t, "https://img/b.jpg", first.Images[1].ImageURL)
	assert.Contains(t, inv.Prefixes, querycache.OwnerQueryPrefix(owner))
	assert.Contains(t, inv.Prefixes, querycache.PublicQueryPrefix)
	assert.Contains(t, inv.Keys, querycache.SlugKey(first.Slug))

	second, _, err := svc.Create(ctx, owner, in)
	require.NoError(t, err)
	assert.Equal(t, "charming-bungalow-sao-paulo-2", second.Slug)
}

func TestCreate_Validation(t *testing.T) {
	svc, db, _ := setupListingsTest(t)
	owner := uuid.New()
	seedListing(t, db, owner, "taken", 1, true, 0)
	base := func() ListingInput {
		return ListingInput{Title: ptr("T"), Address: ptr("A"), City: ptr("C"), Price: ptr(1.0)}
	}

	cases := map[string]func(in *ListingInput){
		"title":         func(in *ListingInput) { in.Title = ptr("  ") },
		"price":         func(in *ListingInput) { in.Price = ptr(-1.0) },
		"beds":          func(in *ListingInput) { in.Beds = ptr(-2) },
		"status":        func(in *ListingInput) { in.Status = ptr(domain.ListingStatus("gone")) },
		"property_type": func(in *ListingInput) { in.PropertyType = ptr(domain.PropertyType("castle")) },
		"slug":          func(in *ListingInput) { in.Slug = ptr("Bad Slug") },
		"open_houses": func(in *ListingInput) {
			in.OpenHouses = &[]domain.OpenHouse{{Date: "2024-05-01", StartTime: "14:00", EndTime: "13:00"}}
		},
		"latitude": func(in *ListingInput) { in.Latitude = ptr(10.0) },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			in := base()
			mutate(&in)
			_, _, err := svc.Create(context.Background(), owner, in)
			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, field, verr.Field)
		})
	}

	t.Run("slug taken", func(t *testing.T) {
		in := base()
		in.Slug = ptr("taken")
		_, _, err := svc.Create(context.Background(), owner, in)
		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Message, "already in use")
	})
}

func TestCreate_Geocodes(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupListingsTest(t)
	geo := &fakeGeocoder{coords: geocoding.Coordinates{Latitude: 30.1, Longitude: -97.2}}
	svc.Geocoder = geo
	in := ListingInput{Title: ptr("T"), Address: ptr("A"), City: ptr("Austin"), Price: ptr(1.0)}

	l, _, err := svc.Create(ctx, uuid.New(), in)
	require.NoError(t, err)
	require.NotNil(t, l.Latitude)
	assert.InDelta(t, 30.1, *l.Latitude, 1e-9)

	in.Latitude, in.Longitude = ptr(1.0), ptr(2.0)
	l, _, err = svc.Create(ctx, uuid.New(), in)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, *l.Latitude, 1e-9)
	assert.Equal(t, 1, geo.calls)
}

func TestCreate_GeocoderFailureLeavesCoordinatesEmpty(t *testing.T) {
	svc, _, _ := setupListingsTest(t)
	svc.Geocoder = &fakeGeocoder{err: errors.New("upstream down")}

	l, _, err := svc.Create(context.Background(), uuid.New(), ListingInput{
		Title: ptr("T"), Address: ptr("A"), City: ptr("C"), Price: ptr(1.0),
	})
	require.NoError(t, err)
	assert.Nil(t, l.Latitude)
	assert.Nil(t, l.Longitude)
}

func TestUpdate_SlugChangeInvalidatesOldAndNewSlug(t *testing.T) {
	ctx := context.Background()
	svc, db, store := setupListingsTest(t)
	owner := uuid.New()
	l := seedListing(t, db, owner, "old-slug", 1, true, 0)

	_, err := svc.GetPublishedBySlug(ctx, "old-slug")
	require.NoError(t, err)
	_, ok, _ := store.Get(ctx, querycache.SlugKey("old-slug"))
	require.True(t, ok)

	updated, inv, err := svc.Update(ctx, owner, l.ID, ListingInput{Slug: ptr("new-slug"), Price: ptr(2.0)})
	require.NoError(t, err)
	assert.Equal(t, "new-slug", updated.Slug)
	assert.Equal(t, 2.0, updated.Price)
	assert.ElementsMatch(t, []string{querycache.SlugKey("old-slug"), querycache.SlugKey("new-slug")}, inv.Keys)

	_, ok, _ = store.Get(ctx, querycache.SlugKey("old-slug"))
	assert.False(t, ok)
	_, err = svc.GetPublishedBySlug(ctx, "old-slug")
	assert.ErrorIs(t, err, ErrListingNotFound)
	got, err := svc.GetPublishedBySlug(ctx, "new-slug")
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)
}

func TestUpdate_ReplacesImagesWholesale(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := setupListingsTest(t)
	owner := uuid.New()
	l := seedListing(t, db, owner, "imgs", 1, true, 0)
	require.NoError(t, replaceImages(db, l.ID, []string{"a", "b", "c"}))

	updated, _, err := svc.Update(ctx, owner, l.ID, ListingInput{Images: &[]string{"z"}})
	require.NoError(t, err)
	require.Len(t, updated.Images, 1)
	assert.Equal(t, "z", updated.Images[0].ImageURL)

	var count int64
	db.Model(&domain.ListingImage{}).Where("listing_id = ?", l.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestUpdate_AddressChangeRegeocodes(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := setupListingsTest(t)
	geo := &fakeGeocoder{err: geocoding.ErrNotFound}
	svc.Geocoder = geo
	owner := uuid.New()
	l := seedListing(t, db, owner, "moving", 1, true, 0)
	require.NoError(t, db.Model(&l).Updates(map[string]interface{}{"latitude": 1.0, "longitude": 2.0}).Error)

	updated, _, err := svc.Update(ctx, owner, l.ID, ListingInput{Title: ptr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, 0, geo.calls)
	assert.NotNil(t, updated.Latitude)

	updated, _, err = svc.Update(ctx, owner, l.ID, ListingInput{Address: ptr("9 New Rd")})
	require.NoError(t, err)
	assert.Equal(t, 1, geo.calls)
	assert.Nil(t, updated.Latitude)
}

func TestUpdate_OwnershipAndMissing(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := setupListingsTest(t)
	owner := uuid.New()
	l := seedListing(t, db, owner, "x", 1, true, 0)

	_, _, err := svc.Update(ctx, uuid.New(), l.ID, ListingInput{Price: ptr(3.0)})
	assert.ErrorIs(t, err, ErrForbidden)
	_, _, err = svc.Update(ctx, owner, uuid.New(), ListingInput{Price: ptr(3.0)})
	assert.ErrorIs(t, err, ErrListingNotFound)
	_, _, err = svc.Delete(ctx, uuid.New(), l.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDelete_RemovesListingImagesAndCache(t *testing.T) {
	ctx := context.Background()
	svc, db, store := setupListingsTest(t)
	owner := uuid.New()
	l := seedListing(t, db, owner, "gone", 1, true, 0)
	require.NoError(t, replaceImages(db, l.ID, []string{"a"}))

	_, err := svc.ListOwned(ctx, owner, query.FilterRequest{})
	require.NoError(t, err)
	assert.Positive(t, store.Len())

	deleted, inv, err := svc.Delete(ctx, owner, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "gone", deleted.Slug)
	assert.Equal(t, []string{querycache.SlugKey("gone")}, inv.Keys)
	assert.Equal(t, 0, store.Len())

	var count int64
	db.Model(&domain.ListingImage{}).Count(&count)
	assert.Equal(t, int64(0), count)
	_, err = svc.FetchOwnedByID(ctx, owner, l.ID)
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "3br-condo-downtown", Slugify("  3BR Condo -- Downtown! "))
	assert.Equal(t, "cafe-creme", Slugify("Café Crème"))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestUpdate_GeocodingDoesNotHoldTheDatabase(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := setupListingsTest(t)
	geo := &blockingGeocoder{entered: make(chan struct{}), release: make(chan struct{})}
	svc.Geocoder = geo
	owner := uuid.New()
	l := seedListing(t, db, owner, "slow-geocode", 1, true, 0)

	updated := make(chan error, 1)
	go func() {
		_, _, err := svc.Update(ctx, owner, l.ID, ListingInput{Address: ptr("9 New Rd")})
		updated <- err
	}()
	select {
	case <-geo.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("update never reached the geocoder")
	}

	// The test pool has a single connection; a read only completes if Update is not holding it.
	read := make(chan error, 1)
	go func() {
		_, err := svc.FetchPublished(ctx, query.FilterRequest{})
		read <- err
	}()
	select {
	case err := <-read:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		close(geo.release)
		t.Fatal("read blocked while the update was geocoding")
	}

	close(geo.release)
	require.NoError(t, <-updated)
	got, err := svc.FetchOwnedByID(ctx, owner, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "9 New Rd", got.Address)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, 30.25, *got.Latitude, 1e-9)
}

func TestSlugs_RetiredSlugsAreNotReused(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupListingsTest(t)
	owner := uuid.New()
	in := ListingInput{Title: ptr("Lake View"), Address: ptr("1 Shore Dr"), City: ptr("Austin"), Price: ptr(500000.0)}

	first, _, err := svc.Create(ctx, owner, in)
	require.NoError(t, err)
	assert.Equal(t, "lake-view-austin", first.Slug)
	_, _, err = svc.Delete(ctx, owner, first.ID)
	require.NoError(t, err)

	second, _, err := svc.Create(ctx, owner, in)
	require.NoError(t, err)
	assert.Equal(t, "lake-view-austin-2", second.Slug)

	renamed, _, err := svc.Update(ctx, owner, second.ID, ListingInput{Slug: ptr("lake-view")})
	require.NoError(t, err)
	assert.Equal(t, "lake-view", renamed.Slug)

	var verr *validation.Error
	for _, taken := range []string{"lake-view-austin", "lake-view-austin-2"} {
		explicit := in
		explicit.Slug = ptr(taken)
		_, _, err = svc.Create(ctx, owner, explicit)
		require.ErrorAs(t, err, &verr, taken)
		assert.Equal(t, "slug", verr.Field)
	}

	back, _, err := svc.Update(ctx, owner, second.ID, ListingInput{Slug: ptr("lake-view-austin-2")})
	require.NoError(t, err)
	assert.Equal(t, "lake-view-austin-2", back.Slug)
}

// rejectListingInserts makes the first n listing inserts fail as a unique index would.
func rejectListingInserts(t *testing.T, db *gorm.DB, n int) *int {
	attempts := 0
	err := db.Callback().Create().Before("gorm:create").Register("test:reject_listing_insert", func(d *gorm.DB) {
		if d.Statement.Schema == nil || d.Statement.Schema.Table != "listings" {
			return
		}
		attempts++
		if attempts <= n {
			_ = d.AddError(gorm.ErrDuplicatedKey)
		}
	})
	require.NoError(t, err)
	return &attempts
}

func TestCreate_RetriesGeneratedSlugAfterUniqueViolation(t *testing.T) {
	svc, db, _ := setupListingsTest(t)
	attempts := rejectListingInserts(t, db, 1)

	created, _, err := svc.Create(context.Background(), uuid.New(), ListingInput{
		Title: ptr("Corner Lot"), Address: ptr("3 Oak Ave"), City: ptr("Austin"), Price: ptr(90000.0),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, *attempts)
	assert.Equal(t, "corner-lot-austin", created.Slug)
}

func TestCreate_ExplicitSlugUniqueViolationIsValidationError(t *testing.T) {
	svc, db, _ := setupListingsTest(t)
	attempts := rejectListingInserts(t, db, maxSlugAttempts)

	_, _, err := svc.Create(context.Background(), uuid.New(), ListingInput{
		Title: ptr("Corner Lot"), Address: ptr("3 Oak Ave"), City: ptr("Austin"), Price: ptr(90000.0), Slug: ptr("corner"),
	})
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "slug", verr.Field)
	assert.Equal(t, 1, *attempts)
}
