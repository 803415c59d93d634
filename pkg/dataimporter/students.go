package dataimporter

import (
	"context"
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/vanit/vanit/pkg/database"
	"github.com/vanit/vanit/pkg/fleet"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type studentRecord struct {
	Identifier         string `csv:"identifier" validate:"required"`
	Name               string `csv:"name" validate:"required"`
	RegistrationNumber string `csv:"registration_number"`
	RouteName          string `csv:"route" validate:"required"`
	StopName           string `csv:"stop" validate:"required"`
}

type captainRecord struct {
	Identifier string `csv:"identifier" validate:"required"`
	Name       string `csv:"name" validate:"required"`
	RouteName  string `csv:"route" validate:"required"`
	Active     bool   `csv:"active"`
}

func ImportStudents(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	var records []studentRecord
	if err := gocsv.UnmarshalFile(file, &records); err != nil {
		return fmt.Errorf("could not parse students file: %w", err)
	}

	studentsCollection := database.GetCollection("students")

	var studentOperations []mongo.WriteModel
	for _, record := range records {
		if err := datasetValidator.Struct(record); err != nil {
			return fmt.Errorf("student %q failed validation: %w", record.Identifier, err)
		}

		student := fleet.Student{
			PrimaryIdentifier:  record.Identifier,
			Name:               record.Name,
			RegistrationNumber: record.RegistrationNumber,
			RouteName:          record.RouteName,
			StopName:           record.StopName,
		}

		bsonRep, _ := bson.Marshal(bson.M{"$set": student})
		updateModel := mongo.NewUpdateOneModel()
		updateModel.SetFilter(bson.M{"primaryidentifier": student.PrimaryIdentifier})
		updateModel.SetUpdate(bsonRep)
		updateModel.SetUpsert(true)

		studentOperations = append(studentOperations, updateModel)
	}

	if len(studentOperations) > 0 {
		_, err := studentsCollection.BulkWrite(context.Background(), studentOperations, &options.BulkWriteOptions{})
		if err != nil {
			return err
		}
	}

	log.Info().Int("students", len(studentOperations)).Msg("Imported Students")

	return nil
}

func ImportCaptains(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	var records []captainRecord
	if err := gocsv.UnmarshalFile(file, &records); err != nil {
		return fmt.Errorf("could not parse captains file: %w", err)
	}

	captainsCollection := database.GetCollection("captains")

	var captainOperations []mongo.WriteModel
	for _, record := range records {
		if err := datasetValidator.Struct(record); err != nil {
			return fmt.Errorf("captain %q failed validation: %w", record.Identifier, err)
		}

		captain := fleet.Captain{
			PrimaryIdentifier: record.Identifier,
			Name:              record.Name,
			RouteName:         record.RouteName,
			Active:            record.Active,
		}

		bsonRep, _ := bson.Marshal(bson.M{"$set": captain})
		updateModel := mongo.NewUpdateOneModel()
		updateModel.SetFilter(bson.M{"primaryidentifier": captain.PrimaryIdentifier})
		updateModel.SetUpdate(bsonRep)
		updateModel.SetUpsert(true)

		captainOperations = append(captainOperations, updateModel)
	}

	if len(captainOperations) > 0 {
		_, err := captainsCollection.BulkWrite(context.Background(), captainOperations, &options.BulkWriteOptions{})
		if err != nil {
			return err
		}
	}

	log.Info().Int("captains", len(captainOperations)).Msg("Imported Captains")

	return nil
}
