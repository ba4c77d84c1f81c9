package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"dealerwatch/config"
)

// Canonical field keys shared by every extraction strategy.
const (
	fieldVIN           = "vin"
	fieldStockNumber   = "stock_number"
	fieldYear          = "year"
	fieldMake          = "make"
	fieldModel         = "model"
	fieldTrim          = "trim"
	fieldPrice         = "price"
	fieldMileage       = "mileage"
	fieldExteriorColor = "exterior_color"
	fieldInteriorColor = "interior_color"
	fieldBodyStyle     = "body_style"
	fieldDrivetrain    = "drivetrain"
	fieldEngine        = "engine"
	fieldTransmission  = "transmission"
)

type fieldMap map[string]string

// merge fills only the keys dst does not already have.
func (dst fieldMap) merge(src fieldMap) {
	for k, v := range src {
		if v == "" {
			continue
		}
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
}

// DetailData is the raw extraction result for one detail page. Values
// stay as page strings until normalization.
type DetailData struct {
	Fields    fieldMap
	Photos    []string
	Title     string
	DetailURL string
}

// A strategy inspects the document and either contributes fields or
// abstains by returning an empty map.
type extractStrategy struct {
	name string
	run  func(doc *goquery.Document) fieldMap
}

var detailStrategies = []extractStrategy{
	{"json-ld", extractLDFields},
	{"spec-pairs", extractSpecPairs},
	{"vin-scan", extractVINScan},
}

var vinRe = regexp.MustCompile(`\b([A-HJ-NPR-Z0-9]{17})\b`)

// ExtractDetail runs the strategy chain over a vehicle detail page.
// Earlier strategies win per field; later ones only fill gaps.
func ExtractDetail(html, detailURL string, src *config.SourceConfig) (*DetailData, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}

	fields := fieldMap{}
	for _, s := range detailStrategies {
		fields.merge(s.run(doc))
	}

	return &DetailData{
		Fields:    fields,
		Photos:    extractPhotos(doc, src),
		Title:     strings.TrimSpace(doc.Find("h1").First().Text()),
		DetailURL: detailURL,
	}, nil
}

func extractLDFields(doc *goquery.Document) fieldMap {
	fields := fieldMap{}
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		vehicles := decodeLDVehicles(sel.Text())
		if len(vehicles) == 0 {
			return true
		}
		v := vehicles[0]

		fields[fieldVIN] = ldString(v, "vehicleIdentificationNumber")
		fields[fieldStockNumber] = ldString(v, "sku")
		fields[fieldYear] = ldString(v, "vehicleModelDate")
		fields[fieldMake] = ldName(v, "brand", "manufacturer")
		fields[fieldPrice] = ldOfferPrice(v)
		fields[fieldMileage] = ldMileage(v)
		fields[fieldExteriorColor] = ldString(v, "color")
		fields[fieldInteriorColor] = ldString(v, "vehicleInteriorColor")
		fields[fieldBodyStyle] = ldString(v, "bodyType")

		// "Escape Titanium" style model strings carry the trim.
		if model := ldString(v, "model"); model != "" {
			parts := strings.SplitN(model, " ", 2)
			fields[fieldModel] = parts[0]
			if len(parts) > 1 {
				fields[fieldTrim] = strings.TrimSpace(parts[1])
			}
		}

		for k, v := range fields {
			if v == "" {
				delete(fields, k)
			}
		}
		return false
	})
	return fields
}

// specLabels maps the spec-table labels dealers actually use onto
// canonical keys, in lookup priority order.
var specLabels = []struct {
	field  string
	labels []string
}{
	{fieldVIN, []string{"vin", "vin #"}},
	{fieldStockNumber, []string{"stock", "stock #", "stock number", "stock no", "stk"}},
	{fieldPrice, []string{"price", "our price", "sale price", "internet price"}},
	{fieldMileage, []string{"miles", "mileage", "odometer"}},
	{fieldExteriorColor, []string{"exterior color", "ext. color", "ext color", "exterior"}},
	{fieldInteriorColor, []string{"interior color", "int. color", "int color", "interior"}},
	{fieldBodyStyle, []string{"body style", "body type", "body"}},
	{fieldDrivetrain, []string{"drivetrain", "drive type", "drive"}},
	{fieldEngine, []string{"engine", "motor"}},
	{fieldTransmission, []string{"transmission", "trans"}},
	{fieldTrim, []string{"trim", "trim level"}},
}

// extractSpecPairs harvests label/value pairs from spec tables and
// definition lists, then resolves labels to canonical fields.
func extractSpecPairs(doc *goquery.Document) fieldMap {
	labelValues := map[string]string{}

	record := func(label, value string) {
		label = strings.ToLower(strings.TrimSpace(strings.Trim(label, ":#")))
		value = strings.TrimSpace(value)
		if label == "" || value == "" || len(label) >= 40 || len(value) >= 200 {
			return
		}
		if _, ok := labelValues[label]; !ok {
			labelValues[label] = value
		}
	}

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() >= 2 {
			record(cells.Eq(0).Text(), cells.Eq(1).Text())
		}
	})

	doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextFiltered("dd")
		if dd.Length() > 0 {
			record(dt.Text(), dd.Text())
		}
	})

	fields := fieldMap{}
	for _, spec := range specLabels {
		for _, label := range spec.labels {
			if value, ok := labelValues[label]; ok {
				fields[spec.field] = value
				break
			}
		}
	}
	return fields
}

// extractVINScan is the last resort: a bare 17-char VIN pattern
// anywhere in the page text.
func extractVINScan(doc *goquery.Document) fieldMap {
	if m := vinRe.FindStringSubmatch(doc.Text()); m != nil {
		return fieldMap{fieldVIN: m[1]}
	}
	return fieldMap{}
}
