package didl

import (
	"iter"
	"strings"
)

// AllContainers retourne un itérateur sur tous les containers de manière récursive
func (d *DIDLLite) AllContainers() iter.Seq[*Container] {
	return func(yield func(*Container) bool) {
		for i := range d.Containers {
			for c := range d.Containers[i].AllContainers() {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// AllItems retourne un itérateur sur tous les items de manière récursive.
// Les pointeurs désignent les items du document lui-même.
func (d *DIDLLite) AllItems() iter.Seq[*Item] {
	return func(yield func(*Item) bool) {
		for i := range d.Items {
			if !yield(&d.Items[i]) {
				return
			}
		}
		for container := range d.AllContainers() {
			for i := range container.Items {
				if !yield(&container.Items[i]) {
					return
				}
			}
		}
	}
}

// AllContainers retourne le container puis tous ses descendants
func (c *Container) AllContainers() iter.Seq[*Container] {
	return func(yield func(*Container) bool) {
		if !yield(c) {
			return
		}
		for i := range c.Containers {
			for container := range c.Containers[i].AllContainers() {
				if !yield(container) {
					return
				}
			}
		}
	}
}

// GetAudioResources retourne un itérateur sur les ressources audio
func (i *Item) GetAudioResources() iter.Seq[Res] {
	return func(yield func(Res) bool) {
		for _, res := range i.Ress {
			if strings.Contains(res.ProtocolInfo, ":audio/") {
				if !yield(res) {
					return
				}
			}
		}
	}
}

// GetPrimaryResource retourne la ressource principale (première disponible)
func (i *Item) GetPrimaryResource() iter.Seq[Res] {
	return func(yield func(Res) bool) {
		if len(i.Ress) > 0 {
			yield(i.Ress[0])
		}
	}
}

// GetMetadata retourne un itérateur sur les métadonnées sous forme de paires clé-valeur
func (i *Item) GetMetadata() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		pairs := [...][2]string{
			{"title", i.Title},
			{"artist", i.Artist},
			{"creator", i.Creator},
			{"album", i.Album},
			{"genre", i.Genre},
			{"date", i.Date},
			{"trackNumber", i.OriginalTrackNumber},
			{"albumArtURI", i.AlbumArt},
		}
		for _, p := range pairs {
			if p[1] != "" && !yield(p[0], p[1]) {
				return
			}
		}
	}
}

// Fonctions utilitaires

// Filter filtre une séquence selon un prédicat
func Filter[T any](seq iter.Seq[T], predicate func(T) bool) iter.Seq[T] {
	return func(yield func(T) bool) {
		for value := range seq {
			if predicate(value) && !yield(value) {
				return
			}
		}
	}
}

// First retourne le premier élément d'une séquence
func First[T any](seq iter.Seq[T]) (T, bool) {
	for value := range seq {
		return value, true
	}
	var zero T
	return zero, false
}

// Count compte le nombre d'éléments dans une séquence
func Count[T any](seq iter.Seq[T]) int {
	count := 0
	for range seq {
		count++
	}
	return count
}
