package app

import (
	"chatcoach/internal/model"
	"chatcoach/internal/repository"
)

// CatalogService serves the scripted reference data that drives a
// practice session: the character roster and the episode scenarios.
type CatalogService struct {
	characterRepo *repository.CharacterRepository
	episodeRepo   *repository.EpisodeRepository
}

func NewCatalogService(
	characterRepo *repository.CharacterRepository,
	episodeRepo *repository.EpisodeRepository,
) *CatalogService {
	return &CatalogService{
		characterRepo: characterRepo,
		episodeRepo:   episodeRepo,
	}
}

func (s *CatalogService) ListCharacters() ([]model.Character, error) {
	return s.characterRepo.List()
}

func (s *CatalogService) ListEpisodes() ([]model.Episode, error) {
	return s.episodeRepo.List()
}

func (s *CatalogService) GetCharacter(id uint) (*model.Character, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	character, err := s.characterRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if character == nil {
		return nil, ErrCharacterNotFound
	}
	return character, nil
}

func (s *CatalogService) GetEpisode(id uint) (*model.Episode, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	episode, err := s.episodeRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if episode == nil {
		return nil, ErrEpisodeNotFound
	}
	return episode, nil
}
