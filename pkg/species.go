package hittuning

// Species is the particle class used to split the energy accounting.
type Species int

const (
	Electron Species = iota
	Photon
	Muon
	Proton
	Pion
	Other
)

// NSpecies is the number of tracked species, Other excluded.
const NSpecies = 5

var trackedSpecies = [NSpecies]Species{Electron, Photon, Muon, Proton, Pion}

func (s Species) String() string {
	switch s {
	case Electron:
		return "Electron"
	case Photon:
		return "Photon"
	case Muon:
		return "Muon"
	case Proton:
		return "Proton"
	case Pion:
		return "Pion"
	default:
		return "Other"
	}
}

// Short is the suffix used in histogram and column names.
func (s Species) Short() string {
	switch s {
	case Electron:
		return "ele"
	case Photon:
		return "gamma"
	case Muon:
		return "mu"
	case Proton:
		return "p"
	case Pion:
		return "pi"
	default:
		return "other"
	}
}

// Dir is the output directory holding the species histograms.
func (s Species) Dir() string {
	return s.String() + "s"
}

// SpeciesFromPDG classifies a PDG code; the sign is ignored.
func SpeciesFromPDG(pdg int) Species {
	if pdg < 0 {
		pdg = -pdg
	}
	switch pdg {
	case 11:
		return Electron
	case 22:
		return Photon
	case 13:
		return Muon
	case 2212:
		return Proton
	case 211, 111:
		return Pion
	}
	return Other
}

// Bin is the h_particleCount / h_maxEParticleCount bin center.
func (s Species) Bin() float64 {
	return float64(s) + 0.5
}
