package storage

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olliezdai13/SmartFridge/internal/common"
)

func TestBuildKey(t *testing.T) {
	userID := uuid.MustParse("6f1d8b9a-1111-4222-8333-444455556666")

	key := BuildKey("snapshots", userID, "20240101T120000-abcd1234.jpg")
	assert.Equal(t, "snapshots/user-6f1d8b9a-1111-4222-8333-444455556666/20240101T120000-abcd1234.jpg", key)

	// prefix slashes are tolerated, empty prefix falls back
	assert.True(t, strings.HasPrefix(BuildKey("/custom/", userID, "a.jpg"), "custom/user-"))
	assert.True(t, strings.HasPrefix(BuildKey("", userID, "a.jpg"), "snapshots/user-"))
}

func s3StatusError(status int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      errors.New("api error"),
		},
	}
}

func TestClassify(t *testing.T) {
	// a missing bucket is a deployment mistake, not worth retrying
	noBucket := &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "the specified bucket does not exist"}
	assert.True(t, common.IsConfiguration(classify(noBucket, "get a")))
	assert.True(t, common.IsConfiguration(classify(fmt.Errorf("op: %w", noBucket), "get a")))

	assert.True(t, common.IsConfiguration(classify(s3StatusError(http.StatusForbidden), "put a")))
	assert.True(t, common.IsConfiguration(classify(s3StatusError(http.StatusUnauthorized), "put a")))

	// a missing object can be an upload racing the worker
	assert.True(t, common.IsTransient(classify(s3StatusError(http.StatusNotFound), "get a")))
	assert.True(t, common.IsTransient(classify(s3StatusError(http.StatusInternalServerError), "get a")))
	assert.True(t, common.IsTransient(classify(errors.New("connection reset"), "get a")))
}

func TestUniqueFilename(t *testing.T) {
	now := time.Date(2024, 6, 1, 15, 4, 5, 0, time.UTC)

	name := UniqueFilename("fridge photo.JPEG", now)
	assert.True(t, strings.HasPrefix(name, "20240601T150405-"), name)
	assert.True(t, strings.HasSuffix(name, ".jpeg"), name)

	// no extension defaults to .jpg
	assert.True(t, strings.HasSuffix(UniqueFilename("photo", now), ".jpg"))

	// two uploads in the same second still diverge
	require.NotEqual(t, UniqueFilename("a.png", now), UniqueFilename("a.png", now))
}
