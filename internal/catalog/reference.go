// Package catalog supplies the reference tables consulted by the evaluator:
// the built-in dataset, the YAML document codec and the read-once sources
// that load a catalog from blob storage.
package catalog

import "habitatcore/pkg/domain"

// Reference species keys.
const (
	Leao       = "LEAO"
	Leopardo   = "LEOPARDO"
	Crocodilo  = "CROCODILO"
	Macaco     = "MACACO"
	Gazela     = "GAZELA"
	Hipopotamo = "HIPOPOTAMO"
)

// Reference biome labels.
const (
	BiomeSavana     = "savana"
	BiomeFloresta   = "floresta"
	BiomeRio        = "rio"
	BiomeSavanaERio = "savana e rio"
)

// Reference returns a fresh copy of the built-in zoo dataset.
func Reference() domain.Catalog {
	return domain.Catalog{
		Enclosures: []domain.Enclosure{
			{ID: 1, Biome: BiomeSavana, Capacity: 10, Occupied: 3, Residents: []string{Macaco}},
			{ID: 2, Biome: BiomeFloresta, Capacity: 5, Occupied: 0},
			{ID: 3, Biome: BiomeSavanaERio, Capacity: 7, Occupied: 2, Residents: []string{Gazela}},
			{ID: 4, Biome: BiomeRio, Capacity: 8, Occupied: 0},
			{ID: 5, Biome: BiomeSavana, Capacity: 9, Occupied: 3, Residents: []string{Leao}},
		},
		Species: []domain.Species{
			{Name: Leao, Size: 3, Biomes: []string{BiomeSavana}, Predator: true},
			{Name: Leopardo, Size: 2, Biomes: []string{BiomeSavana}, Predator: true},
			{Name: Crocodilo, Size: 3, Biomes: []string{BiomeRio}, Predator: true, StrictBiome: true},
			{Name: Macaco, Size: 1, Biomes: []string{BiomeSavana, BiomeFloresta}, Gregarious: true},
			{Name: Gazela, Size: 2, Biomes: []string{BiomeSavana}},
			{Name: Hipopotamo, Size: 4, Biomes: []string{BiomeSavana, BiomeRio}, SharedBiome: BiomeSavanaERio},
		},
	}
}
