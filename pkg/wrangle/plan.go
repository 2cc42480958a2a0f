package wrangle

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/config"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

type step struct {
	name string
	run  func(w *Wrangler) error
}

// Plan is a compiled transform parameter block. Compiling resolves function
// names and regular expressions up front, so a bad configuration fails before
// any data is read.
//
// Steps run in a fixed order: correct data types, fill nulls, clean strings,
// split columns, remove duplicates, drop null columns, remove outliers, apply
// functions, extract datetime components, rename columns, drop columns.
type Plan struct {
	steps []step
}

// Compile builds a plan from params.
func Compile(params config.TransformParams, registry *Registry) (*Plan, error) {
	if registry == nil {
		registry = NewRegistry()
	}
	p := &Plan{}

	if len(params.CorrectDataTypes) > 0 {
		types := params.CorrectDataTypes
		for col, spec := range types {
			if _, err := targetType(spec.Kind); err != nil {
				return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeConfig, "invalid correct_data_types entry").
					WithDetail("column", col)
			}
		}
		p.add("correct_data_types", func(w *Wrangler) error { return w.CorrectDataTypes(types) })
	}

	for _, f := range params.FillNulls {
		f := f
		p.add("fill_nulls:"+f.Column, func(w *Wrangler) error { return w.FillNulls(f.Column, f.Value) })
	}

	for _, c := range params.CleanString {
		c := c
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeConfig, "invalid clean_string pattern").
				WithDetail("column", c.Column)
		}
		p.add("clean_string:"+c.Column, func(w *Wrangler) error {
			col, err := w.stringColumn(c.Column)
			if err != nil {
				return err
			}
			w.cleanString(col, re, c.Replacement)
			return nil
		})
	}

	for _, s := range params.SplitColumns {
		s := s
		p.add("split_column:"+s.Column, func(w *Wrangler) error {
			return w.SplitColumn(s.Column, s.NewColumn, s.Separator, s.Index)
		})
	}

	if params.RemoveDuplicates == nil || *params.RemoveDuplicates {
		p.add("remove_duplicates", func(w *Wrangler) error { return w.RemoveDuplicates() })
	}

	threshold := DefaultNullThreshold
	if params.Threshold != nil {
		threshold = *params.Threshold
	}
	p.add("drop_null_columns", func(w *Wrangler) error { return w.DropNullColumns(threshold) })

	for _, o := range params.RemoveOutliers {
		o := o
		p.add("remove_outliers", func(w *Wrangler) error {
			return w.RemoveOutliersColumns(o.Columns, o.Lower, o.Upper)
		})
	}

	for _, a := range params.ApplyFuncs {
		a := a
		fn, err := registry.Resolve(a.Func, a.Params)
		if err != nil {
			return nil, err
		}
		if a.Column == "" || a.NewColumn == "" {
			return nil, etlerrors.Newf(etlerrors.ErrorTypeConfig, "apply_func_to_df %q needs column and new_column", a.Func)
		}
		p.add("apply_func:"+a.Func, func(w *Wrangler) error {
			return w.applyFunc(a.Func, fn, a.Column, a.NewColumn, Params(a.Params))
		})
	}

	for _, c := range params.DatetimeComponents {
		c := c
		p.add("datetime_components:"+c, func(w *Wrangler) error { return w.ExtractDatetimeComponents(c) })
	}

	if len(params.RenameColumns) > 0 {
		mapping := params.RenameColumns
		p.add("rename_columns", func(w *Wrangler) error { return w.RenameColumns(mapping) })
	}

	if len(params.DropColumns) > 0 {
		drop := params.DropColumns
		p.add("drop_columns", func(w *Wrangler) error { return w.DropColumns(drop) })
	}

	return p, nil
}

func (p *Plan) add(name string, run func(w *Wrangler) error) {
	p.steps = append(p.steps, step{name: name, run: run})
}

// Steps returns the step names in execution order.
func (p *Plan) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.name
	}
	return names
}

// Apply runs the plan on w's dataset, stopping at the first failing step.
func (p *Plan) Apply(w *Wrangler) error {
	for _, s := range p.steps {
		before := w.ds.NumRows()
		if err := s.run(w); err != nil {
			return etlerrors.Wrapf(err, etlerrors.TypeOf(err), "transform step %s failed", s.name)
		}
		w.logger.Debug("transform step done",
			zap.String("step", s.name),
			zap.Int("rows_before", before),
			zap.Int("rows_after", w.ds.NumRows()),
			zap.Int("columns", w.ds.NumColumns()))
	}
	return nil
}

// Run applies the plan to ds in place.
func (p *Plan) Run(ds *columnar.Dataset, logger *zap.Logger) error {
	return p.Apply(New(ds, nil, logger))
}
