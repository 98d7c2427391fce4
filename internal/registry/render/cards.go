// Package render turns registry search results into LINE flex payloads.
package render

import (
	"fmt"
	"strings"

	"github.com/mzDeaThly/data-spf/internal/line"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

// Placeholder stands in for any field with no value so every card has the
// same rows.
const Placeholder = "-"

// buddhistEraOffset converts a Gregorian year to the Thai solar calendar.
const buddhistEraOffset = 543

const labelColor = "#aaaaaa"

// Cards renders one bubble for a single record and a carousel otherwise,
// preserving input order. It returns nil for no records.
func Cards(records []types.Vehicle, today types.Date) line.FlexContainer {
	switch len(records) {
	case 0:
		return nil
	case 1:
		return Bubble(records[0], today)
	}
	bubbles := make([]*line.Bubble, 0, len(records))
	for _, v := range records {
		bubbles = append(bubbles, Bubble(v, today))
	}
	return &line.Carousel{Contents: bubbles}
}

// Message wraps Cards in a flex reply message.
func Message(records []types.Vehicle, today types.Date) line.FlexMessage {
	return line.FlexMessage{AltText: AltText(len(records)), Contents: Cards(records, today)}
}

func AltText(n int) string {
	return fmt.Sprintf("ผลการค้นหา %d รายการ", n)
}

func Bubble(v types.Vehicle, today types.Date) *line.Bubble {
	return &line.Bubble{Body: &line.Box{
		Layout:  "vertical",
		Spacing: "sm",
		Contents: []line.FlexComponent{
			&line.Text{Text: "ทะเบียน: " + orDash(v.LicensePlate), Weight: "bold", Size: "lg"},
			row("ยี่ห้อ", v.Brand),
			row("รุ่น", v.Model),
			row("ผู้ใช้งาน", v.OwnerName),
			row("ติดต่อ", v.ContactInfo),
			row("สีรถ", v.Color),
			row("เลขตัวถัง", v.VIN),
			row("บันทึกเมื่อ", ThaiDate(v.RecordedDate)),
			row("ผ่านมา", DaysSince(v.RecordedDate, today)),
		},
	}}
}

// ThaiDate formats d as DD/MM/YYYY in the Buddhist era.
func ThaiDate(d *types.Date) string {
	if d == nil {
		return Placeholder
	}
	return fmt.Sprintf("%02d/%02d/%d", d.Day, int(d.Month), d.Year+buddhistEraOffset)
}

// DaysSince formats the age of d as "N วัน".
func DaysSince(d *types.Date, today types.Date) string {
	if d == nil {
		return Placeholder
	}
	return fmt.Sprintf("%d วัน", d.DaysSince(today))
}

func row(label, value string) *line.Box {
	return &line.Box{
		Layout: "baseline",
		Contents: []line.FlexComponent{
			&line.Text{Text: label, Size: "sm", Color: labelColor, Flex: 2},
			&line.Text{Text: orDash(value), Size: "sm", Wrap: true, Flex: 5},
		},
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}
