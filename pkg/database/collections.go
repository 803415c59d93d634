package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes() {
	createReferenceIndexes()
	createAttendanceIndexes()
}

func createReferenceIndexes() {
	routesCollection := GetCollection("routes")
	routesIndex := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	opts := options.CreateIndexes()
	_, err := routesCollection.Indexes().CreateMany(context.Background(), routesIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	captainsCollection := GetCollection("captains")
	captainsIndex := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "primaryidentifier", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "routename", Value: 1}, {Key: "active", Value: 1}},
		},
	}

	opts = options.CreateIndexes()
	_, err = captainsCollection.Indexes().CreateMany(context.Background(), captainsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	studentsCollection := GetCollection("students")
	studentsIndex := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "primaryidentifier", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "routename", Value: 1}, {Key: "stopname", Value: 1}},
		},
	}

	opts = options.CreateIndexes()
	_, err = studentsCollection.Indexes().CreateMany(context.Background(), studentsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createAttendanceIndexes() {
	// The partial unique index is what upholds the one-active-session
	// invariant under concurrent upserts.
	sessionsCollection := GetCollection("boarding_sessions")
	sessionsIndex := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "primaryidentifier", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "captainid", Value: 1}, {Key: "routename", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{
			Keys: bson.D{{Key: "startedat", Value: -1}},
		},
	}

	opts := options.CreateIndexes()
	_, err := sessionsCollection.Indexes().CreateMany(context.Background(), sessionsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	recordsCollection := GetCollection("attendance_records")
	recordsIndex := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "primaryidentifier", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "studentid", Value: 1}, {Key: "routename", Value: 1}, {Key: "scannedat", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "sessionid", Value: 1}},
		},
	}

	opts = options.CreateIndexes()
	_, err = recordsCollection.Indexes().CreateMany(context.Background(), recordsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
