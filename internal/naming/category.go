package naming

// Category identifies one of the six recognized document types.
type Category string

const (
	CategoryGSTR2BReco   Category = "GSTR-2B Reco"
	CategoryIMSReco      Category = "IMS Reco"
	CategoryGSTR3B       Category = "GSTR-3B Export"
	CategorySalesReco    Category = "Sales Reco"
	CategorySales        Category = "Sales"
	CategoryAnnualReport Category = "Annual Report"
)

// Categories lists every document category in grammar priority order.
// Reconciliation families come before the generic sales family so a
// specific pattern is never swallowed by a broader one.
func Categories() []Category {
	return []Category{
		CategoryGSTR2BReco,
		CategoryIMSReco,
		CategoryGSTR3B,
		CategorySalesReco,
		CategorySales,
		CategoryAnnualReport,
	}
}

// Bucket names the destination folder group a category maps into.
type Bucket string

const (
	BucketGSTR3B Bucket = "gstr3b"
	BucketITC    Bucket = "itc"
	BucketSales  Bucket = "sales"
	// BucketVersionRoot places the file directly in the version folder.
	BucketVersionRoot Bucket = "version"
)

// BucketFor returns the folder group for a category.
func BucketFor(category Category) Bucket {
	switch category {
	case CategoryGSTR3B:
		return BucketGSTR3B
	case CategoryGSTR2BReco, CategoryIMSReco:
		return BucketITC
	case CategorySales, CategorySalesReco:
		return BucketSales
	case CategoryAnnualReport:
		return BucketVersionRoot
	default:
		return BucketVersionRoot
	}
}

// AllowsMultiple reports whether a client may legitimately hold more than
// one file of the category in a single scan. Monthly GSTR-3B exports are
// the only unbounded family.
func AllowsMultiple(category Category) bool {
	return category == CategoryGSTR3B
}
