package persistence

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/molpadia/molpastudio/internal/domain/entity"
	"github.com/molpadia/molpastudio/internal/domain/repository"
	"github.com/molpadia/molpastudio/internal/logging"
)

// Item layout of the videos table, keyed by Id.
type videoItem struct {
	Id             string  `dynamodbav:"Id"`
	PublicId       string  `dynamodbav:"PublicId"`
	Title          string  `dynamodbav:"Title"`
	Description    string  `dynamodbav:"Description,omitempty"`
	OriginalSize   int64   `dynamodbav:"OriginalSize"`
	CompressedSize int64   `dynamodbav:"CompressedSize"`
	Duration       float64 `dynamodbav:"Duration"`
	CreatedAt      int64   `dynamodbav:"CreatedAt"`
	UpdatedAt      int64   `dynamodbav:"UpdatedAt"`
}

// Item layout of the users table, keyed by Email.
type userItem struct {
	Email        string `dynamodbav:"Email"`
	Id           string `dynamodbav:"Id"`
	PasswordHash string `dynamodbav:"PasswordHash"`
	CreatedAt    int64  `dynamodbav:"CreatedAt"`
}

type DynamoVideoRepository struct {
	db    dynamodbiface.DynamoDBAPI
	table string
}

var _ repository.VideoRepository = (*DynamoVideoRepository)(nil)

func NewDynamoVideoRepository(sess *session.Session, table string) *DynamoVideoRepository {
	return &DynamoVideoRepository{dynamodb.New(sess), table}
}

// List all videos in the table, newest first.
func (r *DynamoVideoRepository) List(ctx context.Context) ([]*entity.Video, error) {
	var (
		videos []*entity.Video
		err    error
	)
	scanErr := r.db.ScanPagesWithContext(ctx, &dynamodb.ScanInput{TableName: aws.String(r.table)},
		func(out *dynamodb.ScanOutput, last bool) bool {
			var items []videoItem
			if err = dynamodbattribute.UnmarshalListOfMaps(out.Items, &items); err != nil {
				return false
			}
			for i := range items {
				videos = append(videos, items[i].toEntity())
			}
			return true
		})
	if scanErr != nil {
		return nil, fmt.Errorf("failed to scan videos: %w", scanErr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal videos: %w", err)
	}
	sortNewestFirst(videos)
	return videos, nil
}

// Get the video by the video ID.
func (r *DynamoVideoRepository) GetById(ctx context.Context, id string) (*entity.Video, error) {
	out, err := r.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		Key:       map[string]*dynamodb.AttributeValue{"Id": {S: aws.String(id)}},
		TableName: aws.String(r.table),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get video %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var item videoItem
	if err := dynamodbattribute.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	return item.toEntity(), nil
}

// Save an entity to the persistence.
func (r *DynamoVideoRepository) Save(ctx context.Context, video *entity.Video) error {
	av, err := dynamodbattribute.MarshalMap(newVideoItem(video))
	if err != nil {
		return err
	}
	_, err = r.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		Item:      av,
		TableName: aws.String(r.table),
	})
	if err != nil {
		logging.Error("failed to save video %s to dynamodb: %v", video.Id, err)
		return err
	}
	return nil
}

// Delete the video by the video ID.
func (r *DynamoVideoRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		Key:                 map[string]*dynamodb.AttributeValue{"Id": {S: aws.String(id)}},
		TableName:           aws.String(r.table),
		ConditionExpression: aws.String("attribute_exists(Id)"),
	})
	if isConditionFailed(err) {
		return repository.ErrNotFound
	}
	return err
}

// Record the compressed size on every video that references the asset. The
// filter applies per scan page, so every page is read.
func (r *DynamoVideoRepository) UpdateCompressedSize(ctx context.Context, publicId string, size int64) error {
	var keys []*dynamodb.AttributeValue
	err := r.db.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(r.table),
		FilterExpression:          aws.String("PublicId = :p"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{":p": {S: aws.String(publicId)}},
		ProjectionExpression:      aws.String("Id"),
	}, func(out *dynamodb.ScanOutput, last bool) bool {
		for _, item := range out.Items {
			keys = append(keys, item["Id"])
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("failed to find video for %s: %w", publicId, err)
	}
	if len(keys) == 0 {
		return repository.ErrNotFound
	}
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	for _, id := range keys {
		_, err := r.db.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
			TableName:        aws.String(r.table),
			Key:              map[string]*dynamodb.AttributeValue{"Id": id},
			UpdateExpression: aws.String("SET CompressedSize = :s, UpdatedAt = :u"),
			ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
				":s": {N: aws.String(strconv.FormatInt(size, 10))},
				":u": {N: aws.String(now)},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to update compressed size: %w", err)
		}
	}
	return nil
}

type DynamoUserRepository struct {
	db    dynamodbiface.DynamoDBAPI
	table string
}

var _ repository.UserRepository = (*DynamoUserRepository)(nil)

func NewDynamoUserRepository(sess *session.Session, table string) *DynamoUserRepository {
	return &DynamoUserRepository{dynamodb.New(sess), table}
}

func (r *DynamoUserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	out, err := r.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		Key:       map[string]*dynamodb.AttributeValue{"Email": {S: aws.String(email)}},
		TableName: aws.String(r.table),
	})
	if err != nil || len(out.Item) == 0 {
		return nil, err
	}
	var item userItem
	if err := dynamodbattribute.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	return &entity.User{
		Id:           item.Id,
		Email:        item.Email,
		PasswordHash: item.PasswordHash,
		CreatedAt:    time.UnixMilli(item.CreatedAt).UTC(),
	}, nil
}

func (r *DynamoUserRepository) Save(ctx context.Context, user *entity.User) error {
	av, err := dynamodbattribute.MarshalMap(userItem{
		Email:        user.Email,
		Id:           user.Id,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	_, err = r.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		Item:                av,
		TableName:           aws.String(r.table),
		ConditionExpression: aws.String("attribute_not_exists(Email)"),
	})
	if isConditionFailed(err) {
		return repository.ErrDuplicate
	}
	return err
}

func isConditionFailed(err error) bool {
	aerr, ok := err.(awserr.Error)
	return ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
}

func newVideoItem(v *entity.Video) videoItem {
	return videoItem{
		Id:             v.Id,
		PublicId:       v.PublicId,
		Title:          v.Title,
		Description:    v.Description,
		OriginalSize:   int64(v.OriginalSize),
		CompressedSize: int64(v.CompressedSize),
		Duration:       float64(v.Duration),
		CreatedAt:      v.CreatedAt.UnixMilli(),
		UpdatedAt:      v.UpdatedAt.UnixMilli(),
	}
}

func (i *videoItem) toEntity() *entity.Video {
	return &entity.Video{
		Id:             i.Id,
		PublicId:       i.PublicId,
		Title:          i.Title,
		Description:    i.Description,
		OriginalSize:   entity.Size(i.OriginalSize),
		CompressedSize: entity.Size(i.CompressedSize),
		Duration:       entity.Seconds(i.Duration),
		CreatedAt:      time.UnixMilli(i.CreatedAt).UTC(),
		UpdatedAt:      time.UnixMilli(i.UpdatedAt).UTC(),
	}
}

func sortNewestFirst(videos []*entity.Video) {
	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
}
