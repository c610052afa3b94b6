// Package pmocover met en cache les pochettes envoyées aux renderers et les
// sert en WebP carré à la taille demandée.
package pmocover

import "gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoconfig"

// FromConfig ouvre le cache décrit par la section covers.
func FromConfig(cfg *pmoconfig.Config) (*Cache, error) {
	return NewCache(cfg.GetCoverCacheDir(), cfg.GetCoverCacheSize())
}
