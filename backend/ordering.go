package backend

type Ordering interface {
	Order() int // lower is higher priority
}

// Base orders per kind of declared source. The i'th source of a list gets base + i.
const (
	OrderSecretsAPI        = 100
	OrderProfileConfigMaps = 200
	OrderConfigMapsAPI     = 300
	OrderSecretPaths       = 400
	OrderConfigMapPaths    = 500
)

type Sorter struct {
	Sources Sources
}

func (ss Sorter) Sort() func(i, j int) bool {
	return func(i, j int) bool {
		return ss.Sources[i].Order() < ss.Sources[j].Order()
	}
}
