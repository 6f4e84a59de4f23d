package persist

import "github.com/smazurov/framelink/internal/frames"

// Chain runs visitors in order and stops at the first error, which it returns
// unchanged. Nil visitors are skipped.
func Chain(visitors ...frames.Visitor) frames.Visitor {
	active := make([]frames.Visitor, 0, len(visitors))
	for _, v := range visitors {
		if v != nil {
			active = append(active, v)
		}
	}

	return func(view frames.View) error {
		for _, visit := range active {
			if err := visit(view); err != nil {
				return err
			}
		}
		return nil
	}
}
