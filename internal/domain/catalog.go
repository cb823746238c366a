package domain

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
)

// Region is a geographic domain produced by the model.
type Region string

const (
	RegionCONUS  Region = "conus"
	RegionAlaska Region = "alaska"
)

// Product is a family of output files sharing a vertical coordinate scheme.
type Product string

const (
	ProductPressure  Product = "prs"
	ProductNative    Product = "nat"
	ProductSurface   Product = "sfc"
	ProductSubHourly Product = "subh"
)

// ForecastHourSet groups forecast hours that share a file naming pattern.
// The value encodes the inclusive hour range, e.g. "fh02-48" or "fh00".
type ForecastHourSet string

const (
	FH00_01 ForecastHourSet = "fh00-01"
	FH02_48 ForecastHourSet = "fh02-48"
	FH00    ForecastHourSet = "fh00"
	FH01_18 ForecastHourSet = "fh01-18"
)

var forecastHourSetRe = regexp.MustCompile(`^fh(\d{2})(?:-(\d{2}))?$`)

// Hours returns the forecast hours covered by the set, ascending.
func (s ForecastHourSet) Hours() ([]int, error) {
	m := forecastHourSetRe.FindStringSubmatch(string(s))
	if m == nil {
		return nil, fmt.Errorf("invalid forecast hour set %q", s)
	}
	start, _ := strconv.Atoi(m[1])
	end := start
	if m[2] != "" {
		end, _ = strconv.Atoi(m[2])
	}
	if end < start {
		return nil, fmt.Errorf("invalid forecast hour set %q: end before start", s)
	}
	return hourRange(start, end), nil
}

// CycleType classifies a model run by its start hour. Runs whose start hour
// is a multiple of RunEvery produce forecast hours 0..MaxForecastHour.
type CycleType struct {
	Name            string
	MaxForecastHour int
	RunEvery        int
}

// Hours returns the forecast hours produced by a run of this type.
func (c CycleType) Hours() []int {
	return hourRange(0, c.MaxForecastHour)
}

var (
	CycleExtended = CycleType{Name: "extended", MaxForecastHour: 48, RunEvery: 6}
	CycleStandard = CycleType{Name: "standard", MaxForecastHour: 18, RunEvery: 1}
)

// RegionConfig describes how a region's files are named on the remote source.
type RegionConfig struct {
	Region     Region
	ModelID    string // e.g. "hrrr", "hrrrak"
	Dir        string // directory under the run date, e.g. "conus"
	FileSuffix string // inserted before ".grib2", e.g. ".ak"
}

// ReferenceKey identifies one NOAA reference page.
type ReferenceKey struct {
	Region          Region
	Product         Product
	ForecastHourSet ForecastHourSet
}

func (k ReferenceKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Region, k.Product, k.ForecastHourSet)
}

// ProductSets pairs a product with its applicable forecast hour sets.
type ProductSets struct {
	Product Product
	Sets    []ForecastHourSet
}

// CatalogSpec is the raw input for NewCatalog.
type CatalogSpec struct {
	Regions       []RegionConfig
	Products      []ProductSets
	CycleTypes    []CycleType // checked in order by CycleTypeFor
	ReferenceURLs map[ReferenceKey]string
}

// Catalog is the immutable dimension catalog. Accessors return copies.
type Catalog struct {
	regions       []RegionConfig
	products      []ProductSets
	cycleTypes    []CycleType
	referenceURLs map[ReferenceKey]string
	setHours      map[ForecastHourSet][]int
}

// NewCatalog validates its input and returns a Catalog that shares no memory with it.
func NewCatalog(spec CatalogSpec) (Catalog, error) {
	if len(spec.Regions) == 0 {
		return Catalog{}, errors.New("catalog has no regions")
	}
	if len(spec.Products) == 0 {
		return Catalog{}, errors.New("catalog has no products")
	}
	if len(spec.CycleTypes) == 0 {
		return Catalog{}, errors.New("catalog has no cycle types")
	}

	c := Catalog{
		regions:       slices.Clone(spec.Regions),
		cycleTypes:    slices.Clone(spec.CycleTypes),
		referenceURLs: make(map[ReferenceKey]string, len(spec.ReferenceURLs)),
		setHours:      make(map[ForecastHourSet][]int),
	}

	for _, ct := range c.cycleTypes {
		if ct.RunEvery <= 0 {
			return Catalog{}, fmt.Errorf("cycle type %q: RunEvery must be positive", ct.Name)
		}
	}
	if c.cycleTypes[len(c.cycleTypes)-1].RunEvery != 1 {
		return Catalog{}, errors.New("last cycle type must match every run hour (RunEvery=1)")
	}

	for _, p := range spec.Products {
		for _, s := range p.Sets {
			hours, err := s.Hours()
			if err != nil {
				return Catalog{}, fmt.Errorf("product %s: %w", p.Product, err)
			}
			c.setHours[s] = hours
		}
		c.products = append(c.products, ProductSets{Product: p.Product, Sets: slices.Clone(p.Sets)})
	}

	for k, v := range spec.ReferenceURLs {
		c.referenceURLs[k] = v
	}

	return c, nil
}

// Regions returns the configured regions in catalog order.
func (c Catalog) Regions() []RegionConfig { return slices.Clone(c.regions) }

// Products returns the products and their forecast hour sets in catalog order.
func (c Catalog) Products() []ProductSets {
	out := make([]ProductSets, len(c.products))
	for i, p := range c.products {
		out[i] = ProductSets{Product: p.Product, Sets: slices.Clone(p.Sets)}
	}
	return out
}

// CycleTypes returns the cycle types in precedence order.
func (c Catalog) CycleTypes() []CycleType { return slices.Clone(c.cycleTypes) }

// Region looks up the naming configuration for r.
func (c Catalog) Region(r Region) (RegionConfig, bool) {
	for _, rc := range c.regions {
		if rc.Region == r {
			return rc, true
		}
	}
	return RegionConfig{}, false
}

// CycleTypeFor returns the cycle type of a run starting at runHour.
func (c Catalog) CycleTypeFor(runHour int) CycleType {
	for _, ct := range c.cycleTypes {
		if runHour%ct.RunEvery == 0 {
			return ct
		}
	}
	// Unreachable: NewCatalog requires the last cycle type to match every hour.
	return c.cycleTypes[len(c.cycleTypes)-1]
}

// CycleTypeNamed looks up a cycle type by name.
func (c Catalog) CycleTypeNamed(name string) (CycleType, bool) {
	for _, ct := range c.cycleTypes {
		if ct.Name == name {
			return ct, true
		}
	}
	return CycleType{}, false
}

// ReferenceURL returns the reference page for k.
func (c Catalog) ReferenceURL(k ReferenceKey) (string, bool) {
	u, ok := c.referenceURLs[k]
	return u, ok
}

// MissingCycleTypes lists the cycle types that none of runHours resolves to.
func (c Catalog) MissingCycleTypes(runHours []int) []string {
	seen := make(map[string]bool)
	for _, h := range runHours {
		seen[c.CycleTypeFor(h).Name] = true
	}
	var missing []string
	for _, ct := range c.cycleTypes {
		if !seen[ct.Name] {
			missing = append(missing, ct.Name)
		}
	}
	return missing
}

// ParseInventoryKey builds an InventoryKey from dimension names, rejecting
// names the catalog does not know and sets that do not apply to the product.
func (c Catalog) ParseInventoryKey(region, product, set, cycleType string) (InventoryKey, error) {
	if _, ok := c.Region(Region(region)); !ok {
		return InventoryKey{}, fmt.Errorf("unknown region %q", region)
	}
	idx := slices.IndexFunc(c.products, func(p ProductSets) bool { return string(p.Product) == product })
	if idx < 0 {
		return InventoryKey{}, fmt.Errorf("unknown product %q", product)
	}
	if !slices.Contains(c.products[idx].Sets, ForecastHourSet(set)) {
		return InventoryKey{}, fmt.Errorf("forecast hour set %q does not apply to product %s", set, product)
	}
	if _, ok := c.CycleTypeNamed(cycleType); !ok {
		return InventoryKey{}, fmt.Errorf("unknown cycle type %q", cycleType)
	}
	return InventoryKey{
		Region:          Region(region),
		Product:         Product(product),
		ForecastHourSet: ForecastHourSet(set),
		CycleType:       cycleType,
	}, nil
}

func (c Catalog) hoursFor(s ForecastHourSet) []int { return c.setHours[s] }

const nomadsProducts = "https://www.nco.ncep.noaa.gov/pmb/products/hrrr/"

// DefaultCatalogSpec returns the HRRR dimension catalog.
func DefaultCatalogSpec() CatalogSpec {
	refs := make(map[ReferenceKey]string)
	pages := []struct {
		product Product
		set     ForecastHourSet
		page    string
	}{
		{ProductPressure, FH00_01, "wrfprsf00"},
		{ProductPressure, FH02_48, "wrfprsf02"},
		{ProductNative, FH00_01, "wrfnatf00"},
		{ProductNative, FH02_48, "wrfnatf02"},
		{ProductSurface, FH00_01, "wrfsfcf00"},
		{ProductSurface, FH02_48, "wrfsfcf02"},
		{ProductSubHourly, FH00, "wrfsubhf00"},
		{ProductSubHourly, FH01_18, "wrfsubhf02"},
	}
	for _, p := range pages {
		refs[ReferenceKey{RegionCONUS, p.product, p.set}] = nomadsProducts + "hrrr.t00z." + p.page + ".grib2.shtml"
		refs[ReferenceKey{RegionAlaska, p.product, p.set}] = nomadsProducts + "hrrr.t00z." + p.page + ".ak.grib2.shtml"
	}

	return CatalogSpec{
		Regions: []RegionConfig{
			{Region: RegionCONUS, ModelID: "hrrr", Dir: "conus"},
			{Region: RegionAlaska, ModelID: "hrrrak", Dir: "alaska", FileSuffix: ".ak"},
		},
		Products: []ProductSets{
			{Product: ProductPressure, Sets: []ForecastHourSet{FH00_01, FH02_48}},
			{Product: ProductNative, Sets: []ForecastHourSet{FH00_01, FH02_48}},
			{Product: ProductSurface, Sets: []ForecastHourSet{FH00_01, FH02_48}},
			{Product: ProductSubHourly, Sets: []ForecastHourSet{FH00, FH01_18}},
		},
		CycleTypes:    []CycleType{CycleExtended, CycleStandard},
		ReferenceURLs: refs,
	}
}

// DefaultCatalog returns the validated HRRR catalog.
func DefaultCatalog() Catalog {
	c, err := NewCatalog(DefaultCatalogSpec())
	if err != nil {
		panic(err)
	}
	return c
}

func hourRange(start, end int) []int {
	out := make([]int, 0, end-start+1)
	for h := start; h <= end; h++ {
		out = append(out, h)
	}
	return out
}
