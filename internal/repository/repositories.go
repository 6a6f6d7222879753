package repository

// Repositories bundles every domain repository over one executor.
type Repositories struct {
	Users         *UserRepository
	Photos        *PhotoRepository
	Likes         *LikeRepository
	Matches       *MatchRepository
	Blocks        *BlockRepository
	Hashtags      *HashtagRepository
	Identities    *IdentityRepository
	ChatRooms     *ChatRoomRepository
	ChatMessages  *ChatMessageRepository
	Notifications *NotificationRepository

	opts []Option
}

// New creates the repository set on db.
func New(db DBTX, opts ...Option) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(db, opts...),
		Photos:        NewPhotoRepository(db, opts...),
		Likes:         NewLikeRepository(db, opts...),
		Matches:       NewMatchRepository(db, opts...),
		Blocks:        NewBlockRepository(db, opts...),
		Hashtags:      NewHashtagRepository(db, opts...),
		Identities:    NewIdentityRepository(db, opts...),
		ChatRooms:     NewChatRoomRepository(db, opts...),
		ChatMessages:  NewChatMessageRepository(db, opts...),
		Notifications: NewNotificationRepository(db, opts...),
		opts:          opts,
	}
}

// WithDB returns the same set running on db, typically a transaction.
func (r *Repositories) WithDB(db DBTX) *Repositories {
	return New(db, r.opts...)
}
