package links

import (
	"context"

	"gorm.io/gorm/clause"
)

func (s *GormStore) IsDeverified(ctx context.Context, discordID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var n int64
	err := s.db.WithContext(ctx).Table(s.marks).Where("discord_id = ?", discordID).Count(&n).Error
	if err != nil {
		return false, unavailable("read deverified mark", err)
	}
	return n > 0, nil
}

func (s *GormStore) MarkDeverified(ctx context.Context, discordID int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := DeverifiedUser{DiscordID: discordID, CreatedAt: s.now().UTC()}
	err := s.db.WithContext(ctx).Table(s.marks).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return unavailable("set deverified mark", err)
	}
	return nil
}

func (s *GormStore) ClearDeverified(ctx context.Context, discordID int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.db.WithContext(ctx).Table(s.marks).Where("discord_id = ?", discordID).Delete(&DeverifiedUser{}).Error
	if err != nil {
		return unavailable("clear deverified mark", err)
	}
	return nil
}
