package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	ErrFriendshipExists      = errors.New("friendship already exists")
	ErrFriendRequestNotFound = errors.New("friend request not found")
)

// FriendshipRepository manages the friendship graph: requests, accepts and
// the queries backing chat creation and presence scoping.
type FriendshipRepository interface {
	AreFriends(ctx context.Context, userID int, friendID int) (bool, error)
	FriendIDs(ctx context.Context, userID int) ([]int, error)
	CreateRequest(ctx context.Context, userID int, friendID int) error
	AcceptRequest(ctx context.Context, userID int, requesterID int) error
}

// FriendshipRepo is a sqlx implementation of FriendshipRepository.
type FriendshipRepo struct {
	db *sqlx.DB
}

// NewFriendshipRepo constructs a FriendshipRepo.
func NewFriendshipRepo(db *sqlx.DB) *FriendshipRepo {
	return &FriendshipRepo{db: db}
}

// AreFriends reports whether an accepted friendship exists in either direction.
func (r *FriendshipRepo) AreFriends(ctx context.Context, userID int, friendID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(
        SELECT 1 FROM friendships
        WHERE status='ACCEPTED'
        AND ((user_id=$1 AND friend_id=$2) OR (user_id=$2 AND friend_id=$1)))`, userID, friendID)
	return exists, err
}

// CreateRequest inserts a PENDING friendship row from userID to friendID.
// A row in either direction, whatever its status, blocks a new request.
func (r *FriendshipRepo) CreateRequest(ctx context.Context, userID int, friendID int) error {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(
        SELECT 1 FROM friendships
        WHERE (user_id=$1 AND friend_id=$2) OR (user_id=$2 AND friend_id=$1))`, userID, friendID)
	if err != nil {
		return err
	}
	if exists {
		return ErrFriendshipExists
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO friendships (user_id, friend_id, status)
        VALUES ($1, $2, 'PENDING')`, userID, friendID)
	return err
}

// AcceptRequest flips requesterID's pending request to userID into an
// accepted friendship.
func (r *FriendshipRepo) AcceptRequest(ctx context.Context, userID int, requesterID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE friendships SET status='ACCEPTED'
        WHERE user_id=$1 AND friend_id=$2 AND status='PENDING'`, requesterID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrFriendRequestNotFound
	}
	return nil
}

// FriendIDs returns the ids of all accepted friends of the user.
func (r *FriendshipRepo) FriendIDs(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT CASE WHEN user_id=$1 THEN friend_id ELSE user_id END
        FROM friendships
        WHERE status='ACCEPTED' AND (user_id=$1 OR friend_id=$1)`, userID)
	return ids, err
}
