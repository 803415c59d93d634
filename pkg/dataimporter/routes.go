package dataimporter

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vanit/vanit/pkg/database"
	"github.com/vanit/vanit/pkg/fleet"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/yaml.v3"
)

// routeDataset is the on-disk shape of a route definition file. Stop
// coordinates are required so the geofence notifier has something to measure
// against.
type routeDataset struct {
	Routes []routeDefinition `yaml:"routes" validate:"required,dive"`
}

type routeDefinition struct {
	Name  string           `yaml:"name" validate:"required"`
	Stops []stopDefinition `yaml:"stops" validate:"required,min=1,dive"`
}

type stopDefinition struct {
	Identifier string  `yaml:"identifier" validate:"required"`
	Name       string  `yaml:"name" validate:"required"`
	Latitude   float64 `yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude  float64 `yaml:"longitude" validate:"gte=-180,lte=180"`
}

var datasetValidator = validator.New()

func (d routeDefinition) toRoute() fleet.Route {
	route := fleet.Route{
		Name: d.Name,
	}

	for _, stop := range d.Stops {
		route.Stops = append(route.Stops, fleet.Stop{
			PrimaryIdentifier: stop.Identifier,
			Name:              stop.Name,
			Location: fleet.Location{
				Latitude:  stop.Latitude,
				Longitude: stop.Longitude,
			},
		})
	}

	return route
}

func ImportRoutes(filename string) error {
	file, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	var dataset routeDataset
	if err := yaml.Unmarshal(file, &dataset); err != nil {
		return fmt.Errorf("could not parse route dataset: %w", err)
	}
	if err := datasetValidator.Struct(dataset); err != nil {
		return fmt.Errorf("route dataset failed validation: %w", err)
	}

	routesCollection := database.GetCollection("routes")

	var routeOperations []mongo.WriteModel
	for _, definition := range dataset.Routes {
		route := definition.toRoute()

		bsonRep, _ := bson.Marshal(bson.M{"$set": route})
		updateModel := mongo.NewUpdateOneModel()
		updateModel.SetFilter(bson.M{"name": route.Name})
		updateModel.SetUpdate(bsonRep)
		updateModel.SetUpsert(true)

		routeOperations = append(routeOperations, updateModel)

		log.Info().
			Str("route", route.Name).
			Int("stops", len(route.Stops)).
			Msg("Added Route")
	}

	if len(routeOperations) > 0 {
		_, err := routesCollection.BulkWrite(context.Background(), routeOperations, &options.BulkWriteOptions{})
		if err != nil {
			return err
		}
	}

	return nil
}
