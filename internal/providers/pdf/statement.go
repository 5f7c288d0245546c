package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// StatementData is pre-formatted; amounts are display strings.
type StatementData struct {
	ReferrerID      string
	GeneratedAt     string
	Currency        string
	ConversionCount int64
	TotalCommission string
	Lines           []StatementLine
}

type StatementLine struct {
	DealName        string
	BusinessName    string
	Conversions     int64
	PurchaseTotal   string
	CommissionTotal string
}

func (p *PDFProvider) GenerateEarningsStatement(ctx context.Context, data StatementData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Referral earnings statement", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "DealShark", props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(18,
		col.New(6).Add(
			text.New("Referrer: "+data.ReferrerID, props.Text{Top: 0}),
			text.New("Generated: "+data.GeneratedAt, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New(fmt.Sprintf("Conversions: %d", data.ConversionCount), props.Text{Align: align.Right}),
			text.New("Currency: "+data.Currency, props.Text{Top: 5, Align: align.Right}),
		),
	)

	m.AddRow(4, line.NewCol(12))

	m.AddRow(10,
		text.NewCol(4, "Deal", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Business", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "Conv.", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Purchases", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Commission", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if len(data.Lines) == 0 {
		m.AddRow(10, text.NewCol(12, "No conversions yet.", props.Text{Size: 9}))
	}
	for _, item := range data.Lines {
		m.AddRow(8,
			text.NewCol(4, item.DealName, props.Text{Size: 9}),
			text.NewCol(3, item.BusinessName, props.Text{Size: 9}),
			text.NewCol(1, fmt.Sprintf("%d", item.Conversions), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.PurchaseTotal, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.CommissionTotal, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(4, line.NewCol(12))
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total earned", props.Text{Size: 10, Style: fontstyle.Bold}),
		text.NewCol(2, data.TotalCommission+" "+data.Currency, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
