package qmatrix

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/examtrail/pyqbank/internal/catalog"
)

// EduCDMExport is a full Q-matrix for a scope in the layout EduCDM-style
// cognitive-diagnosis pipelines load: Q[i][j] says whether item i exercises
// attribute j, with parallel id and name legends.
type EduCDMExport struct {
	Q              [][]int  `json:"Q"`
	ItemIDs        []string `json:"item_ids"`
	AttributeIDs   []string `json:"attribute_ids"`
	AttributeNames []string `json:"attribute_names"`
}

// BuildEduCDMExport materializes the complete matrix for every question under
// a scope, rows in catalog question order, columns in attribute index order.
func (b *Builder) BuildEduCDMExport(ctx context.Context, scope catalog.Scope) (*EduCDMExport, error) {
	ix, err := b.BuildAttributeIndex(ctx, scope)
	if err != nil {
		return nil, err
	}

	questions, err := b.catalog.ResolveQuestions(ctx, catalog.QuestionFilter{Scope: scope})
	if err != nil {
		return nil, fmt.Errorf("resolve questions under %s/%s: %w", scope.Level, scope.ID, err)
	}

	out := &EduCDMExport{
		Q:              make([][]int, 0, len(questions)),
		ItemIDs:        make([]string, 0, len(questions)),
		AttributeIDs:   make([]string, 0, ix.Len()),
		AttributeNames: make([]string, 0, ix.Len()),
	}
	for _, a := range ix.Attributes {
		out.AttributeIDs = append(out.AttributeIDs, a.ID)
		out.AttributeNames = append(out.AttributeNames, a.Name)
	}
	for _, q := range questions {
		v, err := b.BuildVector(ctx, q.ID, ix)
		if err != nil {
			return nil, err
		}
		out.Q = append(out.Q, v.Values)
		out.ItemIDs = append(out.ItemIDs, q.ID)
	}
	return out, nil
}

const exportSheet = "Q-Matrix"

// WriteXLSX renders the export as a spreadsheet: a header row of attribute
// names, one row per item with its id in column A.
func (e *EduCDMExport) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(exportSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	header := make([]any, 0, len(e.AttributeNames)+1)
	header = append(header, "item_id")
	for _, name := range e.AttributeNames {
		header = append(header, name)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range e.Q {
		cells := make([]any, 0, len(row)+1)
		cells = append(cells, e.ItemIDs[i])
		for _, v := range row {
			cells = append(cells, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row coordinates: %w", err)
		}
		if err := f.SetSheetRow(exportSheet, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
