package roster

import (
	"context"

	"github.com/vanit/vanit/pkg/database"
	"github.com/vanit/vanit/pkg/fleet"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Repository reads the fleet roster and route reference data owned by the
// administrative subsystem. Lookups that find nothing return (nil, nil).
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Captain(ctx context.Context, identifier string) (*fleet.Captain, error) {
	captainsCollection := database.GetCollection("captains")

	var captain fleet.Captain
	err := captainsCollection.FindOne(ctx, bson.M{"primaryidentifier": identifier}).Decode(&captain)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return &captain, nil
}

func (r *Repository) ActiveCaptainForRoute(ctx context.Context, routeName string) (*fleet.Captain, error) {
	captainsCollection := database.GetCollection("captains")

	var captain fleet.Captain
	err := captainsCollection.FindOne(ctx, bson.M{"routename": routeName, "active": true}).Decode(&captain)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return &captain, nil
}

func (r *Repository) Student(ctx context.Context, identifier string) (*fleet.Student, error) {
	studentsCollection := database.GetCollection("students")

	var student fleet.Student
	err := studentsCollection.FindOne(ctx, bson.M{"primaryidentifier": identifier}).Decode(&student)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return &student, nil
}

func (r *Repository) StudentsAtStop(ctx context.Context, routeName string, stopName string) ([]fleet.Student, error) {
	studentsCollection := database.GetCollection("students")

	cursor, err := studentsCollection.Find(ctx, bson.M{"routename": routeName, "stopname": stopName})
	if err != nil {
		return nil, err
	}

	var students []fleet.Student
	if err := cursor.All(ctx, &students); err != nil {
		return nil, err
	}

	return students, nil
}

func (r *Repository) Route(ctx context.Context, name string) (*fleet.Route, error) {
	routesCollection := database.GetCollection("routes")

	var route fleet.Route
	err := routesCollection.FindOne(ctx, bson.M{"name": name}).Decode(&route)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return &route, nil
}
