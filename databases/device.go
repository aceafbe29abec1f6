package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/courtwatch-ingest/models"
)

const deviceCollectionName = "devices"

// DeviceDatabase contains the methods to use with the device database. The
// ingest core only ever reads devices; the registration CRUD surface that
// writes them lives outside this repository.
type DeviceDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Device, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Device, error)
}

type deviceDatabase struct {
	db DatabaseHelper
}

// NewDeviceDatabase initializes a new instance of device database with the provided db connection
func NewDeviceDatabase(db DatabaseHelper) DeviceDatabase {
	return &deviceDatabase{
		db: db,
	}
}

func (d *deviceDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Device, error) {
	device := &models.Device{}
	err := d.db.Collection(deviceCollectionName).FindOne(ctx, filter, opts...).Decode(device)
	if err != nil {
		return nil, err
	}
	return device, nil
}

func (d *deviceDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Device, error) {
	var devices []models.Device
	cur := d.db.Collection(deviceCollectionName).Find(ctx, filter, opts...)
	if err := cur.Decode(&devices); err != nil {
		return nil, err
	}
	return devices, nil
}

const notificationLogCollectionName = "notificationlogs"

// NotificationLogDatabase records push send attempts for dedup and audit.
type NotificationLogDatabase interface {
	InsertOne(ctx context.Context, entry models.NotificationLog) (InsertOneResultHelper, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type notificationLogDatabase struct {
	db DatabaseHelper
}

// NewNotificationLogDatabase initializes a new instance of notification log database with the provided db connection
func NewNotificationLogDatabase(db DatabaseHelper) NotificationLogDatabase {
	return &notificationLogDatabase{
		db: db,
	}
}

func (n *notificationLogDatabase) InsertOne(ctx context.Context, entry models.NotificationLog) (InsertOneResultHelper, error) {
	return n.db.Collection(notificationLogCollectionName).InsertOne(ctx, entry), nil
}

func (n *notificationLogDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return n.db.Collection(notificationLogCollectionName).CountDocuments(ctx, filter, opts...)
}
