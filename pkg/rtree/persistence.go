package rtree

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/kass/go-room-rank/pkg/models"
)

// IndexData represents the serializable form of the room index
type IndexData struct {
	Rooms []models.Room
	Count int64
}

var worldBounds = models.BoundingBox{
	BottomLeft: models.Location{Lat: -90, Lon: -180},
	TopRight:   models.Location{Lat: 90, Lon: 180},
}

// Rooms returns every indexed room ordered by ID
func (g *RoomIndex) Rooms() ([]models.Room, error) {
	return g.QueryBox(worldBounds)
}

// SaveToFile writes a gob snapshot of the indexed rooms
func (g *RoomIndex) SaveToFile(filename string) error {
	rooms, err := g.Rooms()
	if err != nil {
		return fmt.Errorf("failed to extract rooms: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	data := IndexData{
		Rooms: rooms,
		Count: int64(len(rooms)),
	}
	if err := gob.NewEncoder(file).Encode(data); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	return file.Close()
}

// LoadFromFile replaces the index content with a snapshot written by SaveToFile
func (g *RoomIndex) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var data IndexData
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	if int64(len(data.Rooms)) != data.Count {
		return fmt.Errorf("corrupt snapshot: header says %d rooms, found %d", data.Count, len(data.Rooms))
	}

	g.Clear()
	if err := g.IndexRooms(data.Rooms); err != nil {
		return fmt.Errorf("failed to index rooms: %w", err)
	}

	return nil
}
