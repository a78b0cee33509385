package hittuning

import (
	"errors"
	"fmt"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/root"
	"go-hep.org/x/hep/hbook"
)

func toROOT(h any) (string, root.Object, error) {
	switch h := h.(type) {
	case *hbook.H1D:
		return h.Name(), rhist.NewH1DFrom(h), nil
	case *hbook.H2D:
		return h.Name(), rhist.NewH2DFrom(h), nil
	}
	return "", nil, fmt.Errorf("unsupported histogram type %T", h)
}

// WriteHistograms stores every directory of histograms into a new ROOT file.
func WriteHistograms(filename string, dirs []HistDir) (err error) {
	f, err := groot.Create(filename)
	if err != nil {
		return &ErrOpenFile{Filename: filename, Err: err}
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	for _, d := range dirs {
		var dir riofs.Directory = f
		if d.Name != "" {
			dir, err = riofs.Dir(f).Mkdir(d.Name)
			if err != nil {
				return fmt.Errorf("error creating directory %s in %s: %w", d.Name, filename, err)
			}
		}
		for _, h := range d.Hists {
			name, obj, err := toROOT(h)
			if err != nil {
				return err
			}
			if err := dir.Put(name, obj); err != nil {
				return fmt.Errorf("error writing %s/%s: %w", d.Name, name, err)
			}
		}
	}

	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Histograms written to %s", filename), "writer")
	}
	return nil
}
