package export

import (
	"fmt"
	"io"

	"rentflow/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName = "Выписка"

	// first row of the transaction table
	headerRow = 6
	moneyFmt  = "#,##0.00"
)

var transactionHeaders = []string{"№", "Бронирование", "Сумма", "Статус", "Создано", "Выплачено"}

// WriteStatement writes an .xlsx statement of an owner's wallet: balances on top,
// then one row per escrow hold in the given order.
func WriteStatement(w io.Writer, wallet *models.Wallet, txs []*models.WalletTransaction) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	moneyStyle, _ := f.NewStyle(&excelize.Style{CustomNumFmt: stringPtr(moneyFmt)})

	// wallet summary
	_ = f.SetCellValue(SheetName, "A1", fmt.Sprintf("Кошелек #%d, владелец %d", wallet.ID, wallet.OwnerID))
	_ = f.MergeCell(SheetName, "A1", "F1")
	_ = f.SetCellStyle(SheetName, "A1", "A1", titleStyle)

	summary := []struct {
		label string
		value float64
	}{
		{"Доступно", wallet.Balance.InexactFloat64()},
		{"В эскроу", wallet.PendingBalance.InexactFloat64()},
		{"Всего", wallet.Balance.Add(wallet.PendingBalance).InexactFloat64()},
	}
	for i, s := range summary {
		row := i + 2
		_ = f.SetCellValue(SheetName, cell(1, row), s.label)
		_ = f.SetCellValue(SheetName, cell(2, row), s.value)
		_ = f.SetCellStyle(SheetName, cell(2, row), cell(2, row), moneyStyle)
	}

	for i, h := range transactionHeaders {
		_ = f.SetCellValue(SheetName, cell(i+1, headerRow), h)
	}
	_ = f.SetCellStyle(SheetName, cell(1, headerRow), cell(len(transactionHeaders), headerRow), headerStyle)

	for i, t := range txs {
		row := headerRow + 1 + i
		_ = f.SetCellValue(SheetName, cell(1, row), t.ID)
		_ = f.SetCellValue(SheetName, cell(2, row), t.BookingID)
		_ = f.SetCellValue(SheetName, cell(3, row), t.Amount.InexactFloat64())
		_ = f.SetCellStyle(SheetName, cell(3, row), cell(3, row), moneyStyle)
		_ = f.SetCellValue(SheetName, cell(4, row), statusLabel(t.Status))
		_ = f.SetCellValue(SheetName, cell(5, row), t.CreatedAt.Format("02.01.2006 15:04"))
		if t.ReleasedAt != nil {
			_ = f.SetCellValue(SheetName, cell(6, row), t.ReleasedAt.Format("02.01.2006 15:04"))
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 14)
	_ = f.SetColWidth(SheetName, "B", "F", 18)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing statement: %w", err)
	}
	return nil
}

func statusLabel(status models.TransactionStatus) string {
	switch status {
	case models.TransactionPending:
		return "В эскроу"
	case models.TransactionReleased:
		return "Выплачено"
	case models.TransactionRefunded:
		return "Возвращено"
	default:
		return string(status)
	}
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func stringPtr(s string) *string {
	return &s
}
