package mongo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/opentrusty/orgkeeper/internal/apperr"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(classify(mongo.ErrNoDocuments)))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(classify(fmt.Errorf("find: %w", mongo.ErrNoDocuments))))

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(classify(dup)))

	assert.Equal(t, apperr.KindStoreUnavailable, apperr.KindOf(classify(mongo.ErrClientDisconnected)))
	assert.Equal(t, apperr.KindStoreUnavailable, apperr.KindOf(classify(context.DeadlineExceeded)))

	plain := errors.New("boom")
	assert.Equal(t, plain, classify(plain))
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(classify(plain)))
}

func TestHasCode(t *testing.T) {
	exists := mongo.CommandError{Code: codeNamespaceExists, Name: "NamespaceExists"}
	assert.True(t, hasCode(exists, codeNamespaceExists))
	assert.True(t, hasCode(fmt.Errorf("create: %w", exists), codeNamespaceExists))
	assert.False(t, hasCode(exists, codeNamespaceNotFound))
	assert.False(t, hasCode(errors.New("x"), codeNamespaceExists))
}
