package archiver

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"github.com/ulikunitz/xz"
	"github.com/vanit/vanit/pkg/database"
	"github.com/vanit/vanit/pkg/fleet"
	"go.mongodb.org/mongo-driver/bson"
)

// Archiver moves ended boarding sessions and their attendance records out of
// the database and into compressed bundles. Active sessions are never
// touched.
type Archiver struct {
	OutputDirectory     string
	WriteIndividualFile bool
	WriteBundle         bool
	CloudUpload         bool
	CloudBucketName     string

	RetentionPeriod time.Duration

	currentTime time.Time
	tarWriter   *tar.Writer
}

// ArchivedSession is the bundle document: one ended session with its full
// attendance ledger embedded.
type ArchivedSession struct {
	Session fleet.BoardingSession    `json:"session"`
	Records []fleet.AttendanceRecord `json:"records"`
}

func (a *Archiver) Perform() {
	log.Info().Interface("archiver", a).Msg("Running Archive process")

	currentTime := time.Now()
	a.currentTime = currentTime

	cutOffTime := currentTime.Add(-a.RetentionPeriod)

	bundleFilename := fmt.Sprintf("%s.tar.xz", currentTime.Format(time.RFC3339))

	var xzWriter *xz.Writer

	if a.WriteBundle {
		bundleFile, err := os.Create(path.Join(a.OutputDirectory, bundleFilename))
		if err != nil {
			log.Error().Err(err).Msg("Failed to open file")
		}

		xzWriter, _ = xz.NewWriter(bundleFile)
		a.tarWriter = tar.NewWriter(xzWriter)
	}

	// Keep a record of the route network at this point in time
	log.Info().Msg("Writing routes")
	routesCollection := database.GetCollection("routes")
	cursor, _ := routesCollection.Find(context.Background(), bson.M{})
	var routes []*fleet.Route

	for cursor.Next(context.TODO()) {
		var route fleet.Route
		err := cursor.Decode(&route)
		if err != nil {
			log.Error().Err(err).Msg("Failed to decode Route")
		}

		routes = append(routes, &route)
	}
	routesJSON, err := json.Marshal(routes)
	if err != nil {
		log.Error().Err(err).Msg("Error converting routes to json")
	}
	a.writeFile("routes.json", routesJSON)

	log.Info().Msgf("Archiving boarding sessions ended before %s", cutOffTime)

	sessionsCollection := database.GetCollection("boarding_sessions")
	recordsCollection := database.GetCollection("attendance_records")

	searchFilter := bson.M{"active": false, "endedat": bson.M{"$lt": cutOffTime}}
	cursor, _ = sessionsCollection.Find(context.Background(), searchFilter)

	sessionCount := 0
	var archivedSessionIDs []string

	for cursor.Next(context.TODO()) {
		var session fleet.BoardingSession
		err := cursor.Decode(&session)
		if err != nil {
			log.Error().Err(err).Msg("Failed to decode BoardingSession")
		}

		archivedSession := ArchivedSession{Session: session}

		recordsCursor, _ := recordsCollection.Find(context.Background(),
			bson.M{"sessionid": session.PrimaryIdentifier})
		for recordsCursor.Next(context.TODO()) {
			var record fleet.AttendanceRecord
			err := recordsCursor.Decode(&record)
			if err != nil {
				log.Error().Err(err).Msg("Failed to decode AttendanceRecord")
			}

			archivedSession.Records = append(archivedSession.Records, record)
		}

		archivedSessionJSON, err := json.Marshal(archivedSession)
		if err != nil {
			log.Error().Err(err).Msg("Error converting archive to json")
		}

		filename := strings.ReplaceAll(fmt.Sprintf("%s.json", session.PrimaryIdentifier), "/", "_")

		a.writeFile(filename, archivedSessionJSON)

		archivedSessionIDs = append(archivedSessionIDs, session.PrimaryIdentifier)
		sessionCount += 1
	}

	log.Info().Int("sessionCount", sessionCount).Msg("Sessions archive document generation complete")

	if a.WriteBundle {
		a.tarWriter.Close()
		xzWriter.Close()
	}

	if a.CloudUpload {
		a.uploadToStorage(bundleFilename)
	}

	if len(archivedSessionIDs) > 0 {
		recordsCollection.DeleteMany(context.Background(), bson.M{"sessionid": bson.M{"$in": archivedSessionIDs}})
		sessionsCollection.DeleteMany(context.Background(), searchFilter)

		database.MongoGlobalInstance.Database.RunCommand(context.Background(), bson.M{"compact": "boarding_sessions"})
	}
}

func (a *Archiver) writeFile(filename string, contents []byte) {
	if a.WriteIndividualFile {
		file, err := os.Create(path.Join(a.OutputDirectory, filename))
		if err != nil {
			log.Error().Err(err).Msg("Failed to open file")
		}

		_, err = file.Write(contents)
		if err != nil {
			log.Error().Err(err).Msg("Failed to write to file")
		}

		file.Close()
	}

	if a.WriteBundle {
		memoryFileInfo := MemoryFileInfo{
			MfiName:    filename,
			MfiSize:    int64(len(contents)),
			MfiMode:    777,
			MfiModTime: a.currentTime,
			MfiIsDir:   false,
		}

		header, err := tar.FileInfoHeader(memoryFileInfo, filename)
		if err != nil {
			log.Error().Err(err).Msg("Failed to generate tar header")
		}

		// Write file header to the tar archive
		err = a.tarWriter.WriteHeader(header)
		if err != nil {
			log.Error().Err(err).Msg("Failed to write tar header")
		}

		_, err = a.tarWriter.Write(contents)
		if err != nil {
			log.Error().Err(err).Msg("Failed to write to file")
		}
	}
}

func (a *Archiver) uploadToStorage(filename string) {
	fullBundlePath := path.Join(a.OutputDirectory, filename)

	client, err := storage.NewClient(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create GCP storage client")
	}

	bucket := client.Bucket(a.CloudBucketName)
	object := bucket.Object(filename)

	reader, err := os.Open(fullBundlePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open file")
	}
	defer reader.Close()

	writer := object.NewWriter(context.Background())

	io.Copy(writer, reader)

	err = writer.Close()

	if err == nil {
		log.Info().Msgf("Written file %s to bucket %s", object.ObjectName(), object.BucketName())
	} else {
		log.Fatal().Err(err).Msg("Failed to write file to GCP")
	}
}
